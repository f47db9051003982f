package badger

import (
	"context"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sdu-escience/gridgate/pkg/metadata"
)

// ============================================================================
// Users
// ============================================================================

func (s *BadgerMetadataStore) CreateUser(ctx context.Context, user *metadata.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user.Name == "" {
		return metadata.NewInvalidArgumentError("user name is empty", "")
	}
	data, err := encodeUser(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, keyUser(user.Name))
		if err != nil {
			return err
		}
		if found {
			return metadata.NewAlreadyExistsError("user", user.Name)
		}
		if err := txn.Set(keyUser(user.Name), data); err != nil {
			return ioError(err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) GetUser(ctx context.Context, name string) (*metadata.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var user *metadata.User
	err := s.db.View(func(txn *badger.Txn) error {
		val, ok, err := get(txn, keyUser(name))
		if err != nil {
			return err
		}
		if !ok {
			return metadata.NewNotFoundError("user", name)
		}
		user, err = decodeUser(name, val)
		return err
	})
	return user, err
}

func (s *BadgerMetadataStore) UpdateUser(ctx context.Context, user *metadata.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeUser(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, keyUser(user.Name))
		if err != nil {
			return err
		}
		if !found {
			return metadata.NewNotFoundError("user", user.Name)
		}
		if err := txn.Set(keyUser(user.Name), data); err != nil {
			return ioError(err)
		}
		return nil
	})
}

// DeleteUser removes the user and every membership row that names it.
func (s *BadgerMetadataStore) DeleteUser(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, keyUser(name))
		if err != nil {
			return err
		}
		if !found {
			return metadata.NewNotFoundError("user", name)
		}

		var memberKeys [][]byte
		err = scan(txn, []byte(prefixMember), false, func(suffix string, _ []byte) error {
			group, user, ok := strings.Cut(suffix, keySeparator)
			if ok && user == name {
				memberKeys = append(memberKeys, keyMember(group, user))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range memberKeys {
			if err := txn.Delete(k); err != nil {
				return ioError(err)
			}
		}

		if err := txn.Delete(keyUser(name)); err != nil {
			return ioError(err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) ListUsers(ctx context.Context) ([]*metadata.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.User
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(prefixUser), true, func(name string, val []byte) error {
			u, err := decodeUser(name, val)
			if err != nil {
				return err
			}
			out = append(out, u)
			return nil
		})
	})
	return out, err
}

// ============================================================================
// Groups
// ============================================================================

func (s *BadgerMetadataStore) CreateGroup(ctx context.Context, group *metadata.Group) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if group.Name == "" {
		return metadata.NewInvalidArgumentError("group name is empty", "")
	}
	data, err := encodeGroup(group)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, keyGroup(group.Name))
		if err != nil {
			return err
		}
		if found {
			return metadata.NewAlreadyExistsError("group", group.Name)
		}
		if err := txn.Set(keyGroup(group.Name), data); err != nil {
			return ioError(err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) GetGroup(ctx context.Context, name string) (*metadata.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var group *metadata.Group
	err := s.db.View(func(txn *badger.Txn) error {
		val, ok, err := get(txn, keyGroup(name))
		if err != nil {
			return err
		}
		if !ok {
			return metadata.NewNotFoundError("group", name)
		}
		group, err = decodeGroup(name, val)
		return err
	})
	return group, err
}

func (s *BadgerMetadataStore) DeleteGroup(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, keyGroup(name))
		if err != nil {
			return err
		}
		if !found {
			return metadata.NewNotFoundError("group", name)
		}

		hasMembers := false
		if err := scan(txn, keyMemberPrefix(name), false, func(string, []byte) error {
			hasMembers = true
			return nil
		}); err != nil {
			return err
		}
		if hasMembers {
			return metadata.NewNotEmptyError("group", name)
		}

		if err := txn.Delete(keyGroup(name)); err != nil {
			return ioError(err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) ListGroups(ctx context.Context) ([]*metadata.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.Group
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(prefixGroup), true, func(name string, val []byte) error {
			g, err := decodeGroup(name, val)
			if err != nil {
				return err
			}
			out = append(out, g)
			return nil
		})
	})
	return out, err
}

func (s *BadgerMetadataStore) AddMember(ctx context.Context, group, user string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, keyGroup(group))
		if err != nil {
			return err
		}
		if !found {
			return metadata.NewNotFoundError("group", group)
		}
		if found, err = exists(txn, keyUser(user)); err != nil {
			return err
		} else if !found {
			return metadata.NewNotFoundError("user", user)
		}
		if found, err = exists(txn, keyMember(group, user)); err != nil {
			return err
		} else if found {
			return metadata.NewAlreadyExistsError("member", group+"/"+user)
		}
		if err := txn.Set(keyMember(group, user), []byte{}); err != nil {
			return ioError(err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) RemoveMember(ctx context.Context, group, user string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, keyGroup(group))
		if err != nil {
			return err
		}
		if !found {
			return metadata.NewNotFoundError("group", group)
		}
		if found, err = exists(txn, keyMember(group, user)); err != nil {
			return err
		} else if !found {
			return metadata.NewNotFoundError("member", group+"/"+user)
		}
		if err := txn.Delete(keyMember(group, user)); err != nil {
			return ioError(err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) ListMembers(ctx context.Context, group string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := exists(txn, keyGroup(group))
		if err != nil {
			return err
		}
		if !found {
			return metadata.NewNotFoundError("group", group)
		}
		return scan(txn, keyMemberPrefix(group), false, func(user string, _ []byte) error {
			out = append(out, user)
			return nil
		})
	})
	return out, err
}
