package badger

import (
	"context"
	"encoding/binary"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sdu-escience/gridgate/pkg/metadata"
)

func (s *BadgerMetadataStore) PutTicket(ctx context.Context, ticket *metadata.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ticket.ID == "" {
		return metadata.NewInvalidArgumentError("ticket id is empty", "")
	}
	data, err := encodeTicket(ticket)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyTicket(ticket.ID), data); err != nil {
			return ioError(err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) GetTicket(ctx context.Context, id string) (*metadata.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ticket *metadata.Ticket
	err := s.db.View(func(txn *badger.Txn) error {
		val, ok, err := get(txn, keyTicket(id))
		if err != nil {
			return err
		}
		if !ok {
			return metadata.NewNotFoundError("ticket", id)
		}
		ticket, err = decodeTicket(id, val)
		return err
	})
	return ticket, err
}

func (s *BadgerMetadataStore) DeleteTicket(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, keyTicket(id))
		if err != nil {
			return err
		}
		if !found {
			return metadata.NewNotFoundError("ticket", id)
		}
		if err := txn.Delete(keyTicket(id)); err != nil {
			return ioError(err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) ListTickets(ctx context.Context) ([]*metadata.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.Ticket
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(prefixTicket), true, func(id string, val []byte) error {
			t, err := decodeTicket(id, val)
			if err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	return out, err
}

// ============================================================================
// Audit
// ============================================================================

// AppendAudit bumps the persistent counter and writes the record in the same
// transaction, so sequence numbers survive restarts without gaps.
func (s *BadgerMetadataStore) AppendAudit(ctx context.Context, rec *metadata.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeAudit(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var seq uint64
	err = s.db.Update(func(txn *badger.Txn) error {
		val, ok, err := get(txn, keyAuditSeq)
		if err != nil {
			return err
		}
		if ok {
			seq = binary.BigEndian.Uint64(val)
		}
		seq++

		if err := txn.Set(keyAuditSeq, encodeUint64(seq)); err != nil {
			return ioError(err)
		}
		if err := txn.Set(keyAudit(seq), data); err != nil {
			return ioError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	rec.Seq = seq
	return nil
}

func (s *BadgerMetadataStore) ListAudit(ctx context.Context, target string, limit int) ([]*metadata.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.AuditRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(prefixAudit), true, func(suffix string, val []byte) error {
			rec, err := decodeAudit(binary.BigEndian.Uint64([]byte(suffix)), val)
			if err != nil {
				return err
			}
			if target == "" || rec.Target == target {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
