package grid

import (
	"context"
	"io"
)

// Connector authenticates an account against a grid endpoint.
type Connector interface {
	Connect(ctx context.Context, account Account) (Connection, error)
}

// Connection is one authenticated connection. It is the factory for every
// sub-client; sub-clients share the connection and become unusable once it
// is closed.
type Connection interface {
	Account() Account

	NewUserClient() (UserClient, error)
	NewGroupClient() (GroupClient, error)
	NewCollectionClient() (CollectionClient, error)
	NewDataObjectClient() (DataObjectClient, error)
	NewFileSystemClient() (FileSystemClient, error)
	NewFileClient() (FileClient, error)
	NewRuleClient() (RuleClient, error)
	NewTransferClient() (TransferClient, error)
	NewQuotaClient() (QuotaClient, error)
	NewAuditClient() (AuditClient, error)
	NewTicketClient() (TicketClient, error)
	NewChecksumClient() (ChecksumClient, error)
	NewSpecificQueryClient() (SpecificQueryClient, error)

	Close() error
}

// UserClient manages grid users. Unknown users fail with CatInvalidUser.
type UserClient interface {
	Add(ctx context.Context, user User, password string) error
	Remove(ctx context.Context, name string) error
	Find(ctx context.Context, name string) (User, error)
	List(ctx context.Context) ([]User, error)
	// SetPassword is the administrative path and needs an admin connection.
	SetPassword(ctx context.Context, name, password string) error
	ChangeOwnPassword(ctx context.Context, current, password string) error
}

// GroupClient manages user groups. Unknown groups fail with CatInvalidGroup.
type GroupClient interface {
	Add(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	Find(ctx context.Context, name string) (Group, error)
	List(ctx context.Context) ([]Group, error)
	AddMember(ctx context.Context, group, user string) error
	RemoveMember(ctx context.Context, group, user string) error
	Members(ctx context.Context, group string) ([]string, error)
}

// CollectionClient manages collections.
type CollectionClient interface {
	// Create fails with UserFileDoesNotExist when a parent is missing and
	// recursive is false.
	Create(ctx context.Context, path string, recursive bool) error
	// Remove fails with CatCollectionNotEmpty unless force is set.
	Remove(ctx context.Context, path string, force bool) error
	List(ctx context.Context, path string) ([]Entry, error)
}

// DataObjectClient manages data objects.
type DataObjectClient interface {
	Remove(ctx context.Context, path string) error
	Rename(ctx context.Context, from, to string) error
}

// FileSystemClient answers structural questions about paths and manages
// access control lists.
type FileSystemClient interface {
	Stat(ctx context.Context, path string) (Entry, error)
	Exists(ctx context.Context, path string) (bool, error)
	SetPermission(ctx context.Context, path, principal string, perm NativePermission) error
	// Permission returns PermNone when the principal has no entry.
	Permission(ctx context.Context, path, principal string) (NativePermission, error)
	Permissions(ctx context.Context, path string) ([]AccessEntry, error)
}

// FileClient opens byte streams on data objects. The caller owns the stream.
type FileClient interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Create truncates or creates the object. Content becomes visible when
	// the writer is closed.
	Create(ctx context.Context, path string) (io.WriteCloser, error)
}

// RuleClient runs named server side rules.
type RuleClient interface {
	Execute(ctx context.Context, name string, params map[string]string) (map[string]string, error)
	List(ctx context.Context) ([]string, error)
}

// TransferClient moves whole files between the local disk and the grid.
type TransferClient interface {
	Put(ctx context.Context, localPath, remotePath string, overwrite bool) error
	Get(ctx context.Context, remotePath, localPath string, overwrite bool) error
}

type QuotaClient interface {
	UserQuota(ctx context.Context, user string) (Quota, error)
	List(ctx context.Context) ([]Quota, error)
}

// AuditClient reads the audit trail. An empty target returns every entry.
type AuditClient interface {
	List(ctx context.Context, target string, limit int) ([]AuditEntry, error)
}

type TicketClient interface {
	Create(ctx context.Context, path string, mode TicketMode) (Ticket, error)
	Get(ctx context.Context, id string) (Ticket, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Ticket, error)
}

// ChecksumClient asks the grid for the checksum of a data object. The
// algorithm is chosen by the grid.
type ChecksumClient interface {
	Compute(ctx context.Context, path string) (Checksum, error)
}

// SpecificQueryClient runs queries registered on the grid under an alias.
type SpecificQueryClient interface {
	Execute(ctx context.Context, alias string, args ...string) ([][]string, error)
	Aliases(ctx context.Context) ([]string, error)
}
