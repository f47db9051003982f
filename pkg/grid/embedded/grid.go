// Package embedded is an in-process data grid.
//
// It implements the native grid API (grid.Connector and every sub-client) on
// top of a metadata.Store catalog and a content.Store for object bytes. It is
// used by tests and by single-node deployments that want the gateway without a
// remote grid. It is intentionally small: one zone, one resource, flat access
// control lists and no replication.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sdu-escience/gridgate/internal/logger"
	"github.com/sdu-escience/gridgate/pkg/content"
	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
	"github.com/sdu-escience/gridgate/pkg/metadata"
	"golang.org/x/crypto/bcrypt"
)

// PublicGroup is the implicit group every user belongs to.
const PublicGroup = "public"

// ChecksumAlgorithm is the algorithm reported by ChecksumClient.
const ChecksumAlgorithm = "sha2"

// RuleFunc implements a server side rule.
type RuleFunc func(ctx context.Context, caller grid.Account, params map[string]string) (map[string]string, error)

// QueryFunc implements a specific query. It reads the catalog directly.
type QueryFunc func(ctx context.Context, catalog metadata.Store, args []string) ([][]string, error)

// Options configures a Grid.
type Options struct {
	// Zone is the only zone served. Required.
	Zone string

	// Resource is the name reported as the storage resource in quotas.
	Resource string

	// AdminUser and AdminPassword bootstrap a rodsadmin account when it does
	// not exist yet.
	AdminUser     string
	AdminPassword string

	// QuotaLimits maps user names to byte limits. Absent users are unlimited.
	QuotaLimits map[string]int64

	// TicketTTL is the lifetime of new tickets. Zero means no expiry.
	TicketTTL time.Duration

	// BcryptCost overrides bcrypt.DefaultCost.
	BcryptCost int

	// Clock overrides time.Now.
	Clock func() time.Time
}

// Grid is an embedded grid instance. It is safe for concurrent use.
type Grid struct {
	catalog metadata.Store
	blobs   content.Store
	opts    Options

	mu      sync.RWMutex
	rules   map[string]RuleFunc
	queries map[string]QueryFunc
}

// New creates a grid over catalog and blobs and bootstraps the zone layout:
// "/", "/<zone>", "/<zone>/home", "/<zone>/trash" and the admin account.
func New(ctx context.Context, catalog metadata.Store, blobs content.Store, opts Options) (*Grid, error) {
	if catalog == nil || blobs == nil {
		return nil, errors.New("embedded grid requires a catalog and a content store")
	}
	if opts.Zone == "" {
		return nil, errors.New("embedded grid requires a zone")
	}
	if opts.Resource == "" {
		opts.Resource = "demoResc"
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	g := &Grid{
		catalog: catalog,
		blobs:   blobs,
		opts:    opts,
		rules:   map[string]RuleFunc{},
		queries: map[string]QueryFunc{},
	}
	g.registerBuiltins()

	if err := g.bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("failed to bootstrap zone %s: %w", opts.Zone, err)
	}

	logger.Debug("Embedded grid ready: zone=%s resource=%s", opts.Zone, opts.Resource)
	return g, nil
}

// Zone returns the served zone.
func (g *Grid) Zone() string {
	return g.opts.Zone
}

// Catalog returns the underlying catalog store.
func (g *Grid) Catalog() metadata.Store {
	return g.catalog
}

// Close closes the catalog store.
func (g *Grid) Close() error {
	return g.catalog.Close()
}

func (g *Grid) now() time.Time {
	return g.opts.Clock().UTC()
}

func (g *Grid) zonePath() string {
	return "/" + g.opts.Zone
}

func (g *Grid) homeRoot() string {
	return g.zonePath() + "/home"
}

func (g *Grid) bootstrap(ctx context.Context) error {
	owner := g.opts.AdminUser
	if owner == "" {
		owner = "rods"
	}

	for _, p := range []string{"/", g.zonePath(), g.homeRoot(), g.zonePath() + "/trash"} {
		if err := g.ensureCollection(ctx, p, owner); err != nil {
			return err
		}
		if err := g.catalog.SetAccess(ctx, p, PublicGroup, metadata.AccessRead); err != nil {
			return err
		}
	}

	if g.opts.AdminUser == "" {
		return nil
	}
	if _, err := g.catalog.GetUser(ctx, g.opts.AdminUser); err == nil {
		return nil
	} else if !metadata.IsNotFound(err) {
		return err
	}

	logger.Info("Bootstrapping admin user %s in zone %s", g.opts.AdminUser, g.opts.Zone)
	return g.createUser(ctx, g.opts.AdminUser, grid.RodsAdmin, g.opts.AdminPassword)
}

func (g *Grid) ensureCollection(ctx context.Context, p, owner string) error {
	now := g.now()
	err := g.catalog.CreateObject(ctx, &metadata.Object{
		Path:       p,
		Type:       metadata.ObjectTypeCollection,
		Owner:      owner,
		CreatedAt:  now,
		ModifiedAt: now,
	})
	if err != nil && !metadata.IsAlreadyExists(err) {
		return err
	}
	return nil
}

// createUser stores the user and its home collection, owned by the user.
func (g *Grid) createUser(ctx context.Context, name string, userType grid.UserType, password string) error {
	hash, err := g.hashPassword(password)
	if err != nil {
		return err
	}

	err = g.catalog.CreateUser(ctx, &metadata.User{
		Name:         name,
		Zone:         g.opts.Zone,
		Type:         string(userType),
		PasswordHash: hash,
		CreatedAt:    g.now(),
	})
	if err != nil {
		return err
	}

	home := grid.HomePath(g.opts.Zone, name)
	if err := g.ensureCollection(ctx, home, name); err != nil {
		return err
	}
	return g.catalog.SetAccess(ctx, home, name, metadata.AccessOwn)
}

func (g *Grid) hashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, nil
	}
	return bcrypt.GenerateFromPassword([]byte(password), g.opts.BcryptCost)
}

// RegisterRule installs or replaces a rule.
func (g *Grid) RegisterRule(name string, fn RuleFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules[name] = fn
}

// RegisterQuery installs or replaces a specific query.
func (g *Grid) RegisterQuery(alias string, fn QueryFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries[alias] = fn
}

func (g *Grid) rule(name string) (RuleFunc, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn, ok := g.rules[name]
	return fn, ok
}

func (g *Grid) query(alias string) (QueryFunc, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn, ok := g.queries[alias]
	return fn, ok
}

func (g *Grid) ruleNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.rules))
	for name := range g.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Grid) queryAliases() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	aliases := make([]string, 0, len(g.queries))
	for alias := range g.queries {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// ============================================================================
// Authentication
// ============================================================================

// Connect authenticates account and opens a connection.
//
// The zone must match, the user must exist and the password must match its
// stored bcrypt hash. Unknown users and wrong passwords fail the same way.
func (g *Grid) Connect(ctx context.Context, account grid.Account) (grid.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if account.Zone != g.opts.Zone {
		return nil, grid.Errorf(errcode.CatInvalidZone, "zone %q is not served here", account.Zone)
	}
	if account.AuthScheme != "" && account.AuthScheme != grid.AuthStandard {
		return nil, grid.Errorf(errcode.SysNotSupported, "auth scheme %s is not supported", account.AuthScheme)
	}

	user, err := g.catalog.GetUser(ctx, account.Username)
	if err != nil {
		if metadata.IsNotFound(err) {
			return nil, grid.Errorf(errcode.CatInvalidAuthentication, "authentication failed for %s", account.Username)
		}
		return nil, storeErr(err, errcode.CatInvalidUser, "user %s", account.Username)
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(account.Password)) != nil {
		return nil, grid.Errorf(errcode.CatInvalidAuthentication, "authentication failed for %s", account.Username)
	}

	logger.Debug("Authenticated %s", account)
	return &Connection{
		grid:    g,
		account: account,
		admin:   user.Type == string(grid.RodsAdmin),
	}, nil
}

// ============================================================================
// Error mapping - catalog and content errors to native codes
// ============================================================================

// storeErr maps a catalog or content error to a native grid error. notFound is
// the code reported for missing records, which depends on the operation.
func storeErr(err error, notFound errcode.Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var gerr *grid.Error
	if errors.As(err, &gerr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, content.ErrContentNotFound) {
		return grid.Wrap(errcode.UnixFileReadErr, err, format, args...)
	}

	var se *metadata.StoreError
	if !errors.As(err, &se) {
		return grid.Wrap(errcode.CatSQLErr, err, format, args...)
	}

	switch se.Code {
	case metadata.ErrNotFound:
		return grid.Wrap(notFound, err, format, args...)
	case metadata.ErrAlreadyExists:
		return grid.Wrap(errcode.CatalogAlreadyHasItem, err, format, args...)
	case metadata.ErrNotEmpty:
		return grid.Wrap(errcode.CatCollectionNotEmpty, err, format, args...)
	case metadata.ErrInvalidArgument:
		return grid.Wrap(errcode.UserInputPathErr, err, format, args...)
	default:
		return grid.Wrap(errcode.CatSQLErr, err, format, args...)
	}
}
