package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/sdu-escience/gridgate/pkg/metadata"
)

// MemoryMetadataStore implements metadata.Store using in-memory maps.
//
// It is suitable for tests, development and single-process deployments where
// the catalog does not need to survive a restart.
//
// Thread Safety:
// All operations are protected by a single read-write mutex (mu). Records are
// copied on the way in and on the way out so callers never share memory with
// the store.
type MemoryMetadataStore struct {
	mu sync.RWMutex

	objects  map[string]*metadata.Object
	children map[string]map[string]struct{}
	acl      map[string]map[string]metadata.AccessLevel

	users   map[string]*metadata.User
	groups  map[string]*metadata.Group
	members map[string]map[string]struct{}

	tickets map[string]*metadata.Ticket

	audit    []*metadata.AuditRecord
	auditSeq uint64
}

// NewMemoryMetadataStore creates an empty store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		objects:  make(map[string]*metadata.Object),
		children: make(map[string]map[string]struct{}),
		acl:      make(map[string]map[string]metadata.AccessLevel),
		users:    make(map[string]*metadata.User),
		groups:   make(map[string]*metadata.Group),
		members:  make(map[string]map[string]struct{}),
		tickets:  make(map[string]*metadata.Ticket),
	}
}

var _ metadata.Store = (*MemoryMetadataStore)(nil)

// Close is a no-op.
func (s *MemoryMetadataStore) Close() error {
	return nil
}

func copyObject(o *metadata.Object) *metadata.Object {
	c := *o
	c.Checksum = slices.Clone(o.Checksum)
	return &c
}

// ============================================================================
// Objects
// ============================================================================

func (s *MemoryMetadataStore) GetObject(ctx context.Context, p string) (*metadata.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[p]
	if !ok {
		return nil, metadata.NewNotFoundError("object", p)
	}
	return copyObject(obj), nil
}

func (s *MemoryMetadataStore) CreateObject(ctx context.Context, obj *metadata.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := metadata.CleanPath(obj.Path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[p]; exists {
		return metadata.NewAlreadyExistsError("object", p)
	}

	parent := metadata.ParentPath(p)
	if p != "/" {
		po, ok := s.objects[parent]
		if !ok {
			return metadata.NewNotFoundError("collection", parent)
		}
		if !po.IsCollection() {
			return metadata.NewInvalidArgumentError("parent is not a collection", parent)
		}
	}

	stored := copyObject(obj)
	stored.Path = p
	s.objects[p] = stored

	if p != "/" {
		kids, ok := s.children[parent]
		if !ok {
			kids = make(map[string]struct{})
			s.children[parent] = kids
		}
		kids[stored.Name()] = struct{}{}
	}
	return nil
}

func (s *MemoryMetadataStore) UpdateObject(ctx context.Context, obj *metadata.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := metadata.CleanPath(obj.Path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[p]; !ok {
		return metadata.NewNotFoundError("object", p)
	}
	stored := copyObject(obj)
	stored.Path = p
	s.objects[p] = stored
	return nil
}

func (s *MemoryMetadataStore) DeleteObject(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[p]
	if !ok {
		return metadata.NewNotFoundError("object", p)
	}
	if obj.IsCollection() && len(s.children[p]) > 0 {
		return metadata.NewNotEmptyError("collection", p)
	}

	delete(s.objects, p)
	delete(s.children, p)
	delete(s.acl, p)
	if p != "/" {
		delete(s.children[metadata.ParentPath(p)], obj.Name())
	}
	return nil
}

func (s *MemoryMetadataStore) ListChildren(ctx context.Context, p string) ([]*metadata.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[p]
	if !ok {
		return nil, metadata.NewNotFoundError("collection", p)
	}
	if !obj.IsCollection() {
		return nil, metadata.NewInvalidArgumentError("not a collection", p)
	}

	names := make([]string, 0, len(s.children[p]))
	for name := range s.children[p] {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*metadata.Object, 0, len(names))
	for _, name := range names {
		child := s.objects[joinChild(p, name)]
		out = append(out, copyObject(child))
	}
	return out, nil
}

func joinChild(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// ============================================================================
// Access control
// ============================================================================

func (s *MemoryMetadataStore) SetAccess(ctx context.Context, p, principal string, level metadata.AccessLevel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[p]; !ok {
		return metadata.NewNotFoundError("object", p)
	}

	if level == metadata.AccessNone {
		delete(s.acl[p], principal)
		return nil
	}
	entries, ok := s.acl[p]
	if !ok {
		entries = make(map[string]metadata.AccessLevel)
		s.acl[p] = entries
	}
	entries[principal] = level
	return nil
}

func (s *MemoryMetadataStore) GetAccess(ctx context.Context, p, principal string) (metadata.AccessLevel, error) {
	if err := ctx.Err(); err != nil {
		return metadata.AccessNone, err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return metadata.AccessNone, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[p]; !ok {
		return metadata.AccessNone, metadata.NewNotFoundError("object", p)
	}
	return s.acl[p][principal], nil
}

func (s *MemoryMetadataStore) ListAccess(ctx context.Context, p string) ([]metadata.ACLEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[p]; !ok {
		return nil, metadata.NewNotFoundError("object", p)
	}

	out := make([]metadata.ACLEntry, 0, len(s.acl[p]))
	for principal, level := range s.acl[p] {
		out = append(out, metadata.ACLEntry{Path: p, Principal: principal, Level: level})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Principal < out[j].Principal })
	return out, nil
}
