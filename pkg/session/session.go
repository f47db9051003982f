// Package session holds the per-account handle every grid operation goes
// through. A Session owns one authenticated connection and hands out the
// specialized sub-clients, each built at most once and shared afterwards.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sdu-escience/gridgate/internal/logger"
	"github.com/sdu-escience/gridgate/pkg/grid"
)

var (
	// ErrIllegalState signals a defect or misconfiguration rather than a
	// recoverable per-call condition.
	ErrIllegalState = errors.New("illegal state")

	// ErrClosed is returned by every accessor once the session is closed.
	ErrClosed = fmt.Errorf("%w: session is closed", ErrIllegalState)
)

// lazy is a once-initialized sub-client cell.
type lazy[T any] struct {
	once sync.Once
	v    T
	err  error
}

// get builds the value on first use. A failed build is remembered; the cell
// does not retry.
func (l *lazy[T]) get(name string, build func() (T, error)) (T, error) {
	l.once.Do(func() {
		l.v, l.err = build()
		if l.err != nil {
			l.err = fmt.Errorf("%w: failed to construct %s client: %w", ErrIllegalState, name, l.err)
		}
	})
	return l.v, l.err
}

// Session is one authenticated account's view of the grid.
//
// Sub-client accessors are safe for concurrent use, including concurrent
// first use. After Close every accessor fails with ErrClosed.
type Session struct {
	account grid.Account
	conn    grid.Connection
	closed  atomic.Bool

	users           lazy[grid.UserClient]
	groups          lazy[grid.GroupClient]
	collections     lazy[grid.CollectionClient]
	dataObjects     lazy[grid.DataObjectClient]
	fileSystem      lazy[grid.FileSystemClient]
	files           lazy[grid.FileClient]
	rules           lazy[grid.RuleClient]
	transfers       lazy[grid.TransferClient]
	quotas          lazy[grid.QuotaClient]
	audits          lazy[grid.AuditClient]
	tickets         lazy[grid.TicketClient]
	checksums       lazy[grid.ChecksumClient]
	specificQueries lazy[grid.SpecificQueryClient]
}

// Open authenticates account through connector and returns a session bound
// to that connection.
//
// An empty AuthScheme defaults to grid.AuthStandard and an empty SSLPolicy
// to grid.SSLDontCare before connecting. No sub-client is built here; each
// is built on its first accessor call.
//
// Parameters:
//   - ctx: Context for cancellation of the connect and login exchange
//   - connector: Grid endpoint, usually from config.CreateConnector
//   - account: Host, zone and credentials to authenticate with
//
// Returns:
//   - *Session: Open session (must be closed by caller)
//   - error: ErrIllegalState for a nil connector, or the connector's
//     authentication error unchanged
//
// Example:
//
//	s, err := session.Open(ctx, connector, cfg.Account("alice", "secret"))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
func Open(ctx context.Context, connector grid.Connector, account grid.Account) (*Session, error) {
	if connector == nil {
		return nil, fmt.Errorf("%w: no grid connector", ErrIllegalState)
	}
	if account.AuthScheme == "" {
		account.AuthScheme = grid.AuthStandard
	}
	if account.SSLPolicy == "" {
		account.SSLPolicy = grid.SSLDontCare
	}

	conn, err := connector.Connect(ctx, account)
	if err != nil {
		return nil, err
	}

	logger.Debug("Opened session for %s", account)
	return &Session{account: account, conn: conn}, nil
}

// New wraps an already authenticated connection. The account is taken as
// given; no defaults are applied.
func New(account grid.Account, conn grid.Connection) *Session {
	return &Session{account: account, conn: conn}
}

// Account returns the account the session authenticated with, password
// included.
func (s *Session) Account() grid.Account {
	return s.account
}

// Zone returns the zone of the account.
func (s *Session) Zone() string {
	return s.account.Zone
}

// Username returns the authenticated user name.
func (s *Session) Username() string {
	return s.account.Username
}

// HomePath returns the configured home collection of the account.
func (s *Session) HomePath() string {
	return s.account.Home()
}

// AuthScheme returns the scheme used at login.
func (s *Session) AuthScheme() grid.AuthScheme {
	return s.account.AuthScheme
}

// SSLPolicy returns the client side TLS policy the session connected with.
func (s *Session) SSLPolicy() grid.SSLPolicy {
	return s.account.SSLPolicy
}

// Close releases the connection. A second Close returns ErrClosed.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return ErrClosed
	}
	logger.Debug("Closing session for %s", s.account)
	return s.conn.Close()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// RequireOpen fails with ErrClosed once the session is closed.
func (s *Session) RequireOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// sub resolves one sub-client cell, failing fast on a closed session.
func sub[T any](s *Session, cell *lazy[T], name string, build func() (T, error)) (T, error) {
	if err := s.RequireOpen(); err != nil {
		var zero T
		return zero, err
	}
	return cell.get(name, build)
}

// ============================================================================
// Sub-clients
//
// Each accessor returns the same instance on every call for the lifetime of
// the session. Concurrent first calls build the client once; the losers wait
// for the winner. A build failure is wrapped in ErrIllegalState and returned
// by every later call too. All accessors fail with ErrClosed after Close.
// ============================================================================

// Users returns the user administration client.
func (s *Session) Users() (grid.UserClient, error) {
	return sub(s, &s.users, "user", s.conn.NewUserClient)
}

// Groups returns the group administration client.
func (s *Session) Groups() (grid.GroupClient, error) {
	return sub(s, &s.groups, "group", s.conn.NewGroupClient)
}

// Collections returns the collection client.
func (s *Session) Collections() (grid.CollectionClient, error) {
	return sub(s, &s.collections, "collection", s.conn.NewCollectionClient)
}

// DataObjects returns the data object client.
func (s *Session) DataObjects() (grid.DataObjectClient, error) {
	return sub(s, &s.dataObjects, "data object", s.conn.NewDataObjectClient)
}

// FileSystem returns the client for stat, existence and ACL queries.
func (s *Session) FileSystem() (grid.FileSystemClient, error) {
	return sub(s, &s.fileSystem, "file system", s.conn.NewFileSystemClient)
}

// Files returns the stream client used to read and write content.
func (s *Session) Files() (grid.FileClient, error) {
	return sub(s, &s.files, "file", s.conn.NewFileClient)
}

// Rules returns the rule execution client.
func (s *Session) Rules() (grid.RuleClient, error) {
	return sub(s, &s.rules, "rule", s.conn.NewRuleClient)
}

// Transfers returns the client copying between local files and the grid.
func (s *Session) Transfers() (grid.TransferClient, error) {
	return sub(s, &s.transfers, "transfer", s.conn.NewTransferClient)
}

// Quotas returns the quota client.
func (s *Session) Quotas() (grid.QuotaClient, error) {
	return sub(s, &s.quotas, "quota", s.conn.NewQuotaClient)
}

// Audits returns the audit trail client.
func (s *Session) Audits() (grid.AuditClient, error) {
	return sub(s, &s.audits, "audit", s.conn.NewAuditClient)
}

// Tickets returns the ticket client.
func (s *Session) Tickets() (grid.TicketClient, error) {
	return sub(s, &s.tickets, "ticket", s.conn.NewTicketClient)
}

// Checksums returns the checksum client.
func (s *Session) Checksums() (grid.ChecksumClient, error) {
	return sub(s, &s.checksums, "checksum", s.conn.NewChecksumClient)
}

// SpecificQueries returns the client running registered queries.
func (s *Session) SpecificQueries() (grid.SpecificQueryClient, error) {
	return sub(s, &s.specificQueries, "specific query", s.conn.NewSpecificQueryClient)
}
