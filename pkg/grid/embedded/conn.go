package embedded

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sdu-escience/gridgate/internal/logger"
	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
	"github.com/sdu-escience/gridgate/pkg/metadata"
)

// Connection is an authenticated connection to an embedded grid.
type Connection struct {
	grid    *Grid
	account grid.Account
	admin   bool
	closed  atomic.Bool
}

func (c *Connection) Account() grid.Account {
	return c.account
}

// Close marks the connection closed. Sub-clients fail afterwards.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return grid.Errorf(errcode.UserSockConnectErr, "connection already closed")
	}
	logger.Debug("Closed connection for %s", c.account)
	return nil
}

func (c *Connection) check(ctx context.Context) error {
	if c.closed.Load() {
		return grid.Errorf(errcode.UserSockConnectErr, "connection is closed")
	}
	return ctx.Err()
}

func (c *Connection) newClient() (client, error) {
	if c.closed.Load() {
		return client{}, grid.Errorf(errcode.UserSockConnectErr, "connection is closed")
	}
	return client{conn: c}, nil
}

// ============================================================================
// grid.Connection sub-client constructors
//
// Every constructor fails once the connection is closed. The clients share
// the connection's account and admin flag and hold no state of their own, so
// building one is cheap; session.Session still builds each only once.
// ============================================================================

// newSub builds a sub-client unless the connection is closed.
func newSub[T any](c *Connection, build func(client) T) (T, error) {
	cl, err := c.newClient()
	if err != nil {
		var zero T
		return zero, err
	}
	return build(cl), nil
}

func (c *Connection) NewUserClient() (grid.UserClient, error) {
	return newSub(c, func(cl client) grid.UserClient { return &userClient{cl} })
}

func (c *Connection) NewGroupClient() (grid.GroupClient, error) {
	return newSub(c, func(cl client) grid.GroupClient { return &groupClient{cl} })
}

func (c *Connection) NewCollectionClient() (grid.CollectionClient, error) {
	return newSub(c, func(cl client) grid.CollectionClient { return &collectionClient{cl} })
}

func (c *Connection) NewDataObjectClient() (grid.DataObjectClient, error) {
	return newSub(c, func(cl client) grid.DataObjectClient { return &dataObjectClient{cl} })
}

func (c *Connection) NewFileSystemClient() (grid.FileSystemClient, error) {
	return newSub(c, func(cl client) grid.FileSystemClient { return &fileSystemClient{cl} })
}

func (c *Connection) NewFileClient() (grid.FileClient, error) {
	return newSub(c, func(cl client) grid.FileClient { return &fileClient{cl} })
}

func (c *Connection) NewRuleClient() (grid.RuleClient, error) {
	return newSub(c, func(cl client) grid.RuleClient { return &ruleClient{cl} })
}

func (c *Connection) NewTransferClient() (grid.TransferClient, error) {
	return newSub(c, func(cl client) grid.TransferClient { return &transferClient{cl} })
}

func (c *Connection) NewQuotaClient() (grid.QuotaClient, error) {
	return newSub(c, func(cl client) grid.QuotaClient { return &quotaClient{cl} })
}

func (c *Connection) NewAuditClient() (grid.AuditClient, error) {
	return newSub(c, func(cl client) grid.AuditClient { return &auditClient{cl} })
}

func (c *Connection) NewTicketClient() (grid.TicketClient, error) {
	return newSub(c, func(cl client) grid.TicketClient { return &ticketClient{cl} })
}

func (c *Connection) NewChecksumClient() (grid.ChecksumClient, error) {
	return newSub(c, func(cl client) grid.ChecksumClient { return &checksumClient{cl} })
}

func (c *Connection) NewSpecificQueryClient() (grid.SpecificQueryClient, error) {
	return newSub(c, func(cl client) grid.SpecificQueryClient { return &specificQueryClient{cl} })
}

// ============================================================================
// Shared client plumbing
// ============================================================================

// client is embedded by every sub-client.
type client struct {
	conn *Connection
}

func (cl client) catalog() metadata.Store {
	return cl.conn.grid.catalog
}

func (cl client) user() string {
	return cl.conn.account.Username
}

// begin checks the connection and cleans p.
func (cl client) begin(ctx context.Context, p string) (string, error) {
	if err := cl.conn.check(ctx); err != nil {
		return "", err
	}
	clean, err := metadata.CleanPath(p)
	if err != nil {
		return "", grid.Wrap(errcode.UserInputPathErr, err, "invalid path %q", p)
	}
	return clean, nil
}

func (cl client) requireAdmin(action string) error {
	if cl.conn.admin {
		return nil
	}
	return grid.Errorf(errcode.CatInsufficientPrivilege, "%s requires rodsadmin, %s is not", action, cl.user())
}

// object fetches p, reporting missing entries with notFound.
func (cl client) object(ctx context.Context, p string, notFound errcode.Code) (*metadata.Object, error) {
	obj, err := cl.catalog().GetObject(ctx, p)
	if err != nil {
		return nil, storeErr(err, notFound, "%s does not exist", p)
	}
	return obj, nil
}

// effectiveAccess is the highest level granted to the caller directly, via a
// group it belongs to, or via the public group.
func (cl client) effectiveAccess(ctx context.Context, p string) (metadata.AccessLevel, error) {
	if cl.conn.admin {
		return metadata.AccessOwn, nil
	}

	entries, err := cl.catalog().ListAccess(ctx, p)
	if err != nil {
		return metadata.AccessNone, storeErr(err, errcode.CatNoRowsFound, "access list of %s", p)
	}

	level := metadata.AccessNone
	var groups map[string]bool
	for _, e := range entries {
		if e.Level <= level {
			continue
		}
		switch e.Principal {
		case cl.user(), PublicGroup:
			level = e.Level
			continue
		}
		if groups == nil {
			if groups, err = cl.groupsOf(ctx, cl.user()); err != nil {
				return metadata.AccessNone, err
			}
		}
		if groups[e.Principal] {
			level = e.Level
		}
	}
	return level, nil
}

func (cl client) groupsOf(ctx context.Context, user string) (map[string]bool, error) {
	all, err := cl.catalog().ListGroups(ctx)
	if err != nil {
		return nil, storeErr(err, errcode.CatInvalidGroup, "list groups")
	}
	groups := make(map[string]bool)
	for _, g := range all {
		members, err := cl.catalog().ListMembers(ctx, g.Name)
		if err != nil {
			return nil, storeErr(err, errcode.CatInvalidGroup, "members of %s", g.Name)
		}
		for _, m := range members {
			if m == user {
				groups[g.Name] = true
				break
			}
		}
	}
	return groups, nil
}

// require fails with CatNoAccessPermission unless the caller holds at least
// level on p.
func (cl client) require(ctx context.Context, p string, level metadata.AccessLevel) error {
	have, err := cl.effectiveAccess(ctx, p)
	if err != nil {
		return err
	}
	if have < level {
		return grid.Errorf(errcode.CatNoAccessPermission, "%s has no %s access on %s",
			cl.user(), toNative(level), p)
	}
	return nil
}

// audit appends an audit record. Failures are logged and otherwise ignored.
func (cl client) audit(ctx context.Context, action, target, format string, args ...any) {
	rec := &metadata.AuditRecord{
		Time:   cl.conn.grid.now(),
		Actor:  cl.user(),
		Action: action,
		Target: target,
		Detail: fmt.Sprintf(format, args...),
	}
	if err := cl.catalog().AppendAudit(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("Failed to record audit entry %s %s: %v", action, target, err)
	}
}

// ============================================================================
// Conversions
// ============================================================================

func toNative(level metadata.AccessLevel) grid.NativePermission {
	switch level {
	case metadata.AccessRead:
		return grid.PermRead
	case metadata.AccessWrite:
		return grid.PermWrite
	case metadata.AccessOwn:
		return grid.PermOwn
	default:
		return grid.PermNone
	}
}

func fromNative(perm grid.NativePermission) (metadata.AccessLevel, bool) {
	switch perm {
	case grid.PermNone:
		return metadata.AccessNone, true
	case grid.PermRead:
		return metadata.AccessRead, true
	case grid.PermWrite:
		return metadata.AccessWrite, true
	case grid.PermOwn:
		return metadata.AccessOwn, true
	}
	return metadata.AccessNone, false
}

func toEntry(obj *metadata.Object) grid.Entry {
	t := grid.DataObject
	if obj.IsCollection() {
		t = grid.Collection
	}
	return grid.Entry{
		Name:       obj.Name(),
		Path:       obj.Path,
		Type:       t,
		Size:       obj.Size,
		Owner:      obj.Owner,
		CreatedAt:  obj.CreatedAt,
		ModifiedAt: obj.ModifiedAt,
	}
}

func toUser(u *metadata.User) grid.User {
	return grid.User{Name: u.Name, Zone: u.Zone, Type: grid.UserType(u.Type)}
}
