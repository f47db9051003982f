package grid

import (
	"encoding/hex"
	"fmt"
	"time"
)

// EntryType distinguishes collections (directories) from data objects (files).
type EntryType int

const (
	DataObject EntryType = iota
	Collection
)

func (t EntryType) String() string {
	if t == Collection {
		return "collection"
	}
	return "data-object"
}

// Entry describes one catalog entry.
type Entry struct {
	Name       string
	Path       string
	Type       EntryType
	Size       int64
	Owner      string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// IsCollection reports whether the entry is a collection.
func (e Entry) IsCollection() bool {
	return e.Type == Collection
}

// UserType is the role of a grid user.
type UserType string

const (
	RodsUser   UserType = "rodsuser"
	RodsAdmin  UserType = "rodsadmin"
	GroupAdmin UserType = "groupadmin"
)

// ParseUserType accepts the native role names.
func ParseUserType(s string) (UserType, error) {
	switch UserType(s) {
	case RodsUser, RodsAdmin, GroupAdmin:
		return UserType(s), nil
	}
	return "", fmt.Errorf("unknown user type %q", s)
}

type User struct {
	Name string
	Zone string
	Type UserType
}

type Group struct {
	Name string
	Zone string
}

// NativePermission is the grid's access level on an object. None is used both
// for "no access" and, when set, to revoke all access.
type NativePermission int

const (
	PermNone NativePermission = iota
	PermRead
	PermWrite
	PermOwn
)

func (p NativePermission) String() string {
	switch p {
	case PermRead:
		return "read object"
	case PermWrite:
		return "modify object"
	case PermOwn:
		return "own"
	default:
		return "null"
	}
}

// AccessEntry is one row of an object's access control list.
type AccessEntry struct {
	Principal  string
	Permission NativePermission
}

// Checksum is a server side digest.
type Checksum struct {
	Algorithm string
	Value     []byte
}

// Hex returns the digest hex-encoded.
func (c Checksum) Hex() string {
	return hex.EncodeToString(c.Value)
}

// Quota reports storage usage of a user on a resource. Limit 0 means unlimited.
type Quota struct {
	Username string
	Resource string
	Limit    int64
	Usage    int64
}

// Over returns how many bytes the usage exceeds the limit by.
func (q Quota) Over() int64 {
	if q.Limit <= 0 || q.Usage <= q.Limit {
		return 0
	}
	return q.Usage - q.Limit
}

// AuditEntry records one mutating request seen by the grid.
type AuditEntry struct {
	Seq    uint64
	Time   time.Time
	Actor  string
	Action string
	Target string
	Detail string
}

// TicketMode is the access a ticket grants.
type TicketMode string

const (
	TicketRead  TicketMode = "read"
	TicketWrite TicketMode = "write"
)

// Ticket is a bearer token granting access to one path.
type Ticket struct {
	ID        string
	Path      string
	Owner     string
	Mode      TicketMode
	ExpiresAt time.Time
	UsesLimit int64
	UsesCount int64
}

// Expired reports whether the ticket can no longer be used at now.
func (t Ticket) Expired(now time.Time) bool {
	if !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt) {
		return true
	}
	return t.UsesLimit > 0 && t.UsesCount >= t.UsesLimit
}
