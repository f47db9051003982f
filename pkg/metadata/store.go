// Package metadata defines the catalog of the embedded grid: the namespace of
// collections and data objects, access control lists, users, groups,
// tickets and the audit trail.
//
// Implementations live in the memory and badger sub-packages and are
// verified by the shared contract suite in pkg/metadata/testing.
package metadata

import (
	"context"
	"path"
	"strings"
	"time"
)

// ObjectType distinguishes collections from data objects.
type ObjectType uint32

const (
	ObjectTypeDataObject ObjectType = iota
	ObjectTypeCollection
)

// Object is one catalog entry, keyed by its absolute, cleaned path.
type Object struct {
	Path  string
	Type  ObjectType
	Size  int64
	Owner string

	// ContentID is the key of the object's bytes in the content store.
	// Empty for collections.
	ContentID string

	// Checksum is the SHA-256 digest of the committed content.
	Checksum []byte

	CreatedAt  time.Time
	ModifiedAt time.Time
}

// IsCollection reports whether the object is a collection.
func (o *Object) IsCollection() bool {
	return o.Type == ObjectTypeCollection
}

// Name returns the last path segment.
func (o *Object) Name() string {
	return path.Base(o.Path)
}

// AccessLevel is a principal's access on an object. AccessNone is never
// stored: setting it removes the entry.
type AccessLevel uint32

const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessWrite
	AccessOwn
)

// ACLEntry is a single access control entry.
type ACLEntry struct {
	Path      string
	Principal string
	Level     AccessLevel
}

// User is a grid account.
type User struct {
	Name         string
	Zone         string
	Type         string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Group is a named set of users.
type Group struct {
	Name      string
	Zone      string
	CreatedAt time.Time
}

// Ticket is a stored bearer token.
type Ticket struct {
	ID        string
	Path      string
	Owner     string
	Mode      string
	ExpiresAt time.Time
	UsesLimit int64
	UsesCount int64
}

// AuditRecord is one line of the audit trail. Seq is assigned by the store.
type AuditRecord struct {
	Seq    uint64
	Time   time.Time
	Actor  string
	Action string
	Target string
	Detail string
}

// Store is the catalog interface used by the embedded grid.
//
// All paths are absolute and cleaned (see CleanPath). Implementations must be
// safe for concurrent use from multiple goroutines and must respect context
// cancellation on entry to every operation.
type Store interface {
	// GetObject returns the object at path or ErrNotFound.
	GetObject(ctx context.Context, path string) (*Object, error)

	// CreateObject inserts a new object. The parent collection must exist
	// (ErrNotFound otherwise) unless the object is the root "/", and the path
	// must be free (ErrAlreadyExists otherwise).
	CreateObject(ctx context.Context, obj *Object) error

	// UpdateObject replaces an existing object (ErrNotFound if absent).
	UpdateObject(ctx context.Context, obj *Object) error

	// DeleteObject removes an object and its access control list. Collections
	// must be empty (ErrNotEmpty otherwise).
	DeleteObject(ctx context.Context, path string) error

	// ListChildren returns the direct children of a collection sorted by
	// name. ErrNotFound if the collection does not exist.
	ListChildren(ctx context.Context, path string) ([]*Object, error)

	// SetAccess sets a principal's level on an existing object. AccessNone
	// removes the entry.
	SetAccess(ctx context.Context, path, principal string, level AccessLevel) error

	// GetAccess returns AccessNone when the principal has no entry.
	GetAccess(ctx context.Context, path, principal string) (AccessLevel, error)

	// ListAccess returns the object's entries sorted by principal.
	ListAccess(ctx context.Context, path string) ([]ACLEntry, error)

	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, name string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	// DeleteUser also removes the user from every group.
	DeleteUser(ctx context.Context, name string) error
	ListUsers(ctx context.Context) ([]*User, error)

	CreateGroup(ctx context.Context, group *Group) error
	GetGroup(ctx context.Context, name string) (*Group, error)
	// DeleteGroup fails with ErrNotEmpty while the group has members.
	DeleteGroup(ctx context.Context, name string) error
	ListGroups(ctx context.Context) ([]*Group, error)

	// AddMember fails with ErrNotFound for an unknown group or user and with
	// ErrAlreadyExists if the user is already a member.
	AddMember(ctx context.Context, group, user string) error
	RemoveMember(ctx context.Context, group, user string) error
	// ListMembers returns member names sorted.
	ListMembers(ctx context.Context, group string) ([]string, error)

	PutTicket(ctx context.Context, ticket *Ticket) error
	GetTicket(ctx context.Context, id string) (*Ticket, error)
	DeleteTicket(ctx context.Context, id string) error
	ListTickets(ctx context.Context) ([]*Ticket, error)

	// AppendAudit stores rec and assigns it the next sequence number.
	AppendAudit(ctx context.Context, rec *AuditRecord) error

	// ListAudit returns records oldest first. An empty target matches every
	// record, limit <= 0 means no limit (the newest limit records are kept).
	ListAudit(ctx context.Context, target string, limit int) ([]*AuditRecord, error)

	Close() error
}

// CleanPath normalizes p into an absolute catalog path.
func CleanPath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", NewInvalidArgumentError("path must be absolute", p)
	}
	return path.Clean(p), nil
}

// ParentPath returns the parent collection of p. The parent of "/" is "/".
func ParentPath(p string) string {
	return path.Dir(p)
}
