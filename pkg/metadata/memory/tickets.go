package memory

import (
	"context"
	"sort"

	"github.com/sdu-escience/gridgate/pkg/metadata"
)

func (s *MemoryMetadataStore) PutTicket(ctx context.Context, ticket *metadata.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ticket.ID == "" {
		return metadata.NewInvalidArgumentError("ticket id is empty", "")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := *ticket
	s.tickets[ticket.ID] = &t
	return nil
}

func (s *MemoryMetadataStore) GetTicket(ctx context.Context, id string) (*metadata.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, metadata.NewNotFoundError("ticket", id)
	}
	c := *t
	return &c, nil
}

func (s *MemoryMetadataStore) DeleteTicket(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[id]; !ok {
		return metadata.NewNotFoundError("ticket", id)
	}
	delete(s.tickets, id)
	return nil
}

func (s *MemoryMetadataStore) ListTickets(ctx context.Context) ([]*metadata.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*metadata.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ============================================================================
// Audit
// ============================================================================

func (s *MemoryMetadataStore) AppendAudit(ctx context.Context, rec *metadata.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditSeq++
	rec.Seq = s.auditSeq
	c := *rec
	s.audit = append(s.audit, &c)
	return nil
}

func (s *MemoryMetadataStore) ListAudit(ctx context.Context, target string, limit int) ([]*metadata.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.AuditRecord
	for _, rec := range s.audit {
		if target != "" && rec.Target != target {
			continue
		}
		c := *rec
		out = append(out, &c)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
