package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/sdu-escience/gridgate/pkg/metadata"
)

// ============================================================================
// Users
// ============================================================================

func copyUser(u *metadata.User) *metadata.User {
	c := *u
	c.PasswordHash = slices.Clone(u.PasswordHash)
	return &c
}

func (s *MemoryMetadataStore) CreateUser(ctx context.Context, user *metadata.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user.Name == "" {
		return metadata.NewInvalidArgumentError("user name is empty", "")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Name]; exists {
		return metadata.NewAlreadyExistsError("user", user.Name)
	}
	s.users[user.Name] = copyUser(user)
	return nil
}

func (s *MemoryMetadataStore) GetUser(ctx context.Context, name string) (*metadata.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[name]
	if !ok {
		return nil, metadata.NewNotFoundError("user", name)
	}
	return copyUser(u), nil
}

func (s *MemoryMetadataStore) UpdateUser(ctx context.Context, user *metadata.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Name]; !ok {
		return metadata.NewNotFoundError("user", user.Name)
	}
	s.users[user.Name] = copyUser(user)
	return nil
}

func (s *MemoryMetadataStore) DeleteUser(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[name]; !ok {
		return metadata.NewNotFoundError("user", name)
	}
	delete(s.users, name)
	for _, m := range s.members {
		delete(m, name)
	}
	return nil
}

func (s *MemoryMetadataStore) ListUsers(ctx context.Context) ([]*metadata.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*metadata.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ============================================================================
// Groups
// ============================================================================

func (s *MemoryMetadataStore) CreateGroup(ctx context.Context, group *metadata.Group) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if group.Name == "" {
		return metadata.NewInvalidArgumentError("group name is empty", "")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[group.Name]; exists {
		return metadata.NewAlreadyExistsError("group", group.Name)
	}
	g := *group
	s.groups[group.Name] = &g
	s.members[group.Name] = make(map[string]struct{})
	return nil
}

func (s *MemoryMetadataStore) GetGroup(ctx context.Context, name string) (*metadata.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[name]
	if !ok {
		return nil, metadata.NewNotFoundError("group", name)
	}
	c := *g
	return &c, nil
}

func (s *MemoryMetadataStore) DeleteGroup(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[name]; !ok {
		return metadata.NewNotFoundError("group", name)
	}
	if len(s.members[name]) > 0 {
		return metadata.NewNotEmptyError("group", name)
	}
	delete(s.groups, name)
	delete(s.members, name)
	return nil
}

func (s *MemoryMetadataStore) ListGroups(ctx context.Context) ([]*metadata.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*metadata.Group, 0, len(s.groups))
	for _, g := range s.groups {
		c := *g
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryMetadataStore) AddMember(ctx context.Context, group, user string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.members[group]
	if !ok {
		return metadata.NewNotFoundError("group", group)
	}
	if _, ok := s.users[user]; !ok {
		return metadata.NewNotFoundError("user", user)
	}
	if _, exists := members[user]; exists {
		return metadata.NewAlreadyExistsError("member", group+"/"+user)
	}
	members[user] = struct{}{}
	return nil
}

func (s *MemoryMetadataStore) RemoveMember(ctx context.Context, group, user string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.members[group]
	if !ok {
		return metadata.NewNotFoundError("group", group)
	}
	if _, ok := members[user]; !ok {
		return metadata.NewNotFoundError("member", group+"/"+user)
	}
	delete(members, user)
	return nil
}

func (s *MemoryMetadataStore) ListMembers(ctx context.Context, group string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	members, ok := s.members[group]
	if !ok {
		return nil, metadata.NewNotFoundError("group", group)
	}
	out := make([]string, 0, len(members))
	for name := range members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
