package badger

import (
	"bytes"
	"fmt"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"
	"github.com/sdu-escience/gridgate/pkg/metadata"
)

// Records are stored in XDR. XDR has no native time type, so timestamps are
// kept as Unix nanoseconds; zero means "unset".

type objectRecord struct {
	Type       uint32
	Size       int64
	Owner      string
	ContentID  string
	Checksum   []byte
	CreatedAt  int64
	ModifiedAt int64
}

type userRecord struct {
	Zone         string
	Type         string
	PasswordHash []byte
	CreatedAt    int64
}

type groupRecord struct {
	Zone      string
	CreatedAt int64
}

type ticketRecord struct {
	Path      string
	Owner     string
	Mode      string
	ExpiresAt int64
	UsesLimit int64
	UsesCount int64
}

type auditRecord struct {
	Time   int64
	Actor  string
	Action string
	Target string
	Detail string
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(data), v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return nil
}

func encodeObject(o *metadata.Object) ([]byte, error) {
	return encode(&objectRecord{
		Type:       uint32(o.Type),
		Size:       o.Size,
		Owner:      o.Owner,
		ContentID:  o.ContentID,
		Checksum:   o.Checksum,
		CreatedAt:  toNanos(o.CreatedAt),
		ModifiedAt: toNanos(o.ModifiedAt),
	})
}

func decodeObject(path string, data []byte) (*metadata.Object, error) {
	var rec objectRecord
	if err := decode(data, &rec); err != nil {
		return nil, err
	}
	return &metadata.Object{
		Path:       path,
		Type:       metadata.ObjectType(rec.Type),
		Size:       rec.Size,
		Owner:      rec.Owner,
		ContentID:  rec.ContentID,
		Checksum:   rec.Checksum,
		CreatedAt:  fromNanos(rec.CreatedAt),
		ModifiedAt: fromNanos(rec.ModifiedAt),
	}, nil
}

func encodeUser(u *metadata.User) ([]byte, error) {
	return encode(&userRecord{
		Zone:         u.Zone,
		Type:         u.Type,
		PasswordHash: u.PasswordHash,
		CreatedAt:    toNanos(u.CreatedAt),
	})
}

func decodeUser(name string, data []byte) (*metadata.User, error) {
	var rec userRecord
	if err := decode(data, &rec); err != nil {
		return nil, err
	}
	return &metadata.User{
		Name:         name,
		Zone:         rec.Zone,
		Type:         rec.Type,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    fromNanos(rec.CreatedAt),
	}, nil
}

func encodeGroup(g *metadata.Group) ([]byte, error) {
	return encode(&groupRecord{Zone: g.Zone, CreatedAt: toNanos(g.CreatedAt)})
}

func decodeGroup(name string, data []byte) (*metadata.Group, error) {
	var rec groupRecord
	if err := decode(data, &rec); err != nil {
		return nil, err
	}
	return &metadata.Group{Name: name, Zone: rec.Zone, CreatedAt: fromNanos(rec.CreatedAt)}, nil
}

func encodeTicket(t *metadata.Ticket) ([]byte, error) {
	return encode(&ticketRecord{
		Path:      t.Path,
		Owner:     t.Owner,
		Mode:      t.Mode,
		ExpiresAt: toNanos(t.ExpiresAt),
		UsesLimit: t.UsesLimit,
		UsesCount: t.UsesCount,
	})
}

func decodeTicket(id string, data []byte) (*metadata.Ticket, error) {
	var rec ticketRecord
	if err := decode(data, &rec); err != nil {
		return nil, err
	}
	return &metadata.Ticket{
		ID:        id,
		Path:      rec.Path,
		Owner:     rec.Owner,
		Mode:      rec.Mode,
		ExpiresAt: fromNanos(rec.ExpiresAt),
		UsesLimit: rec.UsesLimit,
		UsesCount: rec.UsesCount,
	}, nil
}

func encodeAudit(a *metadata.AuditRecord) ([]byte, error) {
	return encode(&auditRecord{
		Time:   toNanos(a.Time),
		Actor:  a.Actor,
		Action: a.Action,
		Target: a.Target,
		Detail: a.Detail,
	})
}

func decodeAudit(seq uint64, data []byte) (*metadata.AuditRecord, error) {
	var rec auditRecord
	if err := decode(data, &rec); err != nil {
		return nil, err
	}
	return &metadata.AuditRecord{
		Seq:    seq,
		Time:   fromNanos(rec.Time),
		Actor:  rec.Actor,
		Action: rec.Action,
		Target: rec.Target,
		Detail: rec.Detail,
	}, nil
}
