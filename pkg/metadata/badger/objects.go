package badger

import (
	"context"
	"encoding/binary"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sdu-escience/gridgate/pkg/metadata"
)

func (s *BadgerMetadataStore) GetObject(ctx context.Context, p string) (*metadata.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var obj *metadata.Object
	err = s.db.View(func(txn *badger.Txn) error {
		var txErr error
		obj, txErr = getObject(txn, p)
		return txErr
	})
	return obj, err
}

func getObject(txn *badger.Txn, p string) (*metadata.Object, error) {
	val, ok, err := get(txn, keyObject(p))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, metadata.NewNotFoundError("object", p)
	}
	return decodeObject(p, val)
}

// CreateObject inserts obj and its child index entry in one transaction.
func (s *BadgerMetadataStore) CreateObject(ctx context.Context, obj *metadata.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := metadata.CleanPath(obj.Path)
	if err != nil {
		return err
	}

	data, err := encodeObject(obj)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, keyObject(p))
		if err != nil {
			return err
		}
		if found {
			return metadata.NewAlreadyExistsError("object", p)
		}

		if p != "/" {
			parent := metadata.ParentPath(p)
			po, err := getObject(txn, parent)
			if err != nil {
				if metadata.IsNotFound(err) {
					return metadata.NewNotFoundError("collection", parent)
				}
				return err
			}
			if !po.IsCollection() {
				return metadata.NewInvalidArgumentError("parent is not a collection", parent)
			}
			if err := txn.Set(keyChild(parent, obj.Name()), []byte{}); err != nil {
				return ioError(err)
			}
		}

		if err := txn.Set(keyObject(p), data); err != nil {
			return ioError(err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) UpdateObject(ctx context.Context, obj *metadata.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := metadata.CleanPath(obj.Path)
	if err != nil {
		return err
	}

	data, err := encodeObject(obj)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, keyObject(p))
		if err != nil {
			return err
		}
		if !found {
			return metadata.NewNotFoundError("object", p)
		}
		if err := txn.Set(keyObject(p), data); err != nil {
			return ioError(err)
		}
		return nil
	})
}

// DeleteObject removes the object, its child index entry and its ACL.
func (s *BadgerMetadataStore) DeleteObject(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		obj, err := getObject(txn, p)
		if err != nil {
			return err
		}

		if obj.IsCollection() {
			hasChildren := false
			err := scan(txn, keyChildPrefix(p), false, func(string, []byte) error {
				hasChildren = true
				return nil
			})
			if err != nil {
				return err
			}
			if hasChildren {
				return metadata.NewNotEmptyError("collection", p)
			}
		}

		var aclKeys [][]byte
		err = scan(txn, keyACLPrefix(p), false, func(principal string, _ []byte) error {
			aclKeys = append(aclKeys, keyACL(p, principal))
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range aclKeys {
			if err := txn.Delete(k); err != nil {
				return ioError(err)
			}
		}

		if err := txn.Delete(keyObject(p)); err != nil {
			return ioError(err)
		}
		if p != "/" {
			if err := txn.Delete(keyChild(metadata.ParentPath(p), obj.Name())); err != nil {
				return ioError(err)
			}
		}
		return nil
	})
}

// ListChildren scans the child index; keys sort by name so the result is
// already ordered.
func (s *BadgerMetadataStore) ListChildren(ctx context.Context, p string) ([]*metadata.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.Object
	err = s.db.View(func(txn *badger.Txn) error {
		dir, err := getObject(txn, p)
		if err != nil {
			if metadata.IsNotFound(err) {
				return metadata.NewNotFoundError("collection", p)
			}
			return err
		}
		if !dir.IsCollection() {
			return metadata.NewInvalidArgumentError("not a collection", p)
		}

		var names []string
		if err := scan(txn, keyChildPrefix(p), false, func(name string, _ []byte) error {
			names = append(names, name)
			return nil
		}); err != nil {
			return err
		}

		out = make([]*metadata.Object, 0, len(names))
		for _, name := range names {
			child, err := getObject(txn, joinChild(p, name))
			if err != nil {
				return err
			}
			out = append(out, child)
		}
		return nil
	})
	return out, err
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

func (s *BadgerMetadataStore) SetAccess(ctx context.Context, p, principal string, level metadata.AccessLevel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, keyObject(p))
		if err != nil {
			return err
		}
		if !found {
			return metadata.NewNotFoundError("object", p)
		}

		if level == metadata.AccessNone {
			err = txn.Delete(keyACL(p, principal))
		} else {
			err = txn.Set(keyACL(p, principal), encodeUint32(uint32(level)))
		}
		if err != nil {
			return ioError(err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) GetAccess(ctx context.Context, p, principal string) (metadata.AccessLevel, error) {
	if err := ctx.Err(); err != nil {
		return metadata.AccessNone, err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return metadata.AccessNone, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	level := metadata.AccessNone
	err = s.db.View(func(txn *badger.Txn) error {
		found, err := exists(txn, keyObject(p))
		if err != nil {
			return err
		}
		if !found {
			return metadata.NewNotFoundError("object", p)
		}

		val, ok, err := get(txn, keyACL(p, principal))
		if err != nil || !ok {
			return err
		}
		level = metadata.AccessLevel(binary.BigEndian.Uint32(val))
		return nil
	})
	return level, err
}

func (s *BadgerMetadataStore) ListAccess(ctx context.Context, p string) ([]metadata.ACLEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := metadata.CleanPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []metadata.ACLEntry{}
	err = s.db.View(func(txn *badger.Txn) error {
		found, err := exists(txn, keyObject(p))
		if err != nil {
			return err
		}
		if !found {
			return metadata.NewNotFoundError("object", p)
		}

		return scan(txn, keyACLPrefix(p), true, func(principal string, val []byte) error {
			out = append(out, metadata.ACLEntry{
				Path:      p,
				Principal: principal,
				Level:     metadata.AccessLevel(binary.BigEndian.Uint32(val)),
			})
			return nil
		})
	})
	return out, err
}
