package embedded

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
	"github.com/sdu-escience/gridgate/pkg/metadata"
)

// ============================================================================
// Rules
// ============================================================================

type ruleClient struct{ client }

func (c *ruleClient) Execute(ctx context.Context, name string, params map[string]string) (map[string]string, error) {
	if err := c.conn.check(ctx); err != nil {
		return nil, err
	}
	fn, ok := c.conn.grid.rule(name)
	if !ok {
		return nil, grid.Errorf(errcode.NoRuleFoundErr, "no rule named %s", name)
	}
	out, err := fn(ctx, c.conn.account, params)
	if err != nil {
		return nil, err
	}
	c.audit(ctx, "rule.exec", name, "")
	return out, nil
}

func (c *ruleClient) List(ctx context.Context) ([]string, error) {
	if err := c.conn.check(ctx); err != nil {
		return nil, err
	}
	return c.conn.grid.ruleNames(), nil
}

// ============================================================================
// Specific queries
// ============================================================================

type specificQueryClient struct{ client }

func (c *specificQueryClient) Execute(ctx context.Context, alias string, args ...string) ([][]string, error) {
	if err := c.conn.check(ctx); err != nil {
		return nil, err
	}
	fn, ok := c.conn.grid.query(alias)
	if !ok {
		return nil, grid.Errorf(errcode.CatUnknownSpecificQuery, "no specific query named %s", alias)
	}
	rows, err := fn(ctx, c.catalog(), args)
	if err != nil {
		return nil, storeErr(err, errcode.CatNoRowsFound, "query %s", alias)
	}
	return rows, nil
}

func (c *specificQueryClient) Aliases(ctx context.Context) ([]string, error) {
	if err := c.conn.check(ctx); err != nil {
		return nil, err
	}
	return c.conn.grid.queryAliases(), nil
}

func (g *Grid) registerBuiltins() {
	g.rules["core.ping"] = func(context.Context, grid.Account, map[string]string) (map[string]string, error) {
		return map[string]string{"status": "ok"}, nil
	}
	g.rules["core.whoami"] = func(_ context.Context, caller grid.Account, _ map[string]string) (map[string]string, error) {
		return map[string]string{"user": caller.Username, "zone": caller.Zone}, nil
	}
	g.rules["core.time"] = func(context.Context, grid.Account, map[string]string) (map[string]string, error) {
		return map[string]string{"time": g.now().Format(time.RFC3339)}, nil
	}

	g.queries["ShowCollAcls"] = func(ctx context.Context, catalog metadata.Store, args []string) ([][]string, error) {
		if len(args) != 1 {
			return nil, grid.Errorf(errcode.SysInvalidInputParam, "ShowCollAcls takes a collection path")
		}
		entries, err := catalog.ListAccess(ctx, args[0])
		if err != nil {
			return nil, err
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.Principal, toNative(e.Level).String()})
		}
		return rows, nil
	}
	g.queries["listUserGroups"] = func(ctx context.Context, catalog metadata.Store, args []string) ([][]string, error) {
		if len(args) != 1 {
			return nil, grid.Errorf(errcode.SysInvalidInputParam, "listUserGroups takes a user name")
		}
		if _, err := catalog.GetUser(ctx, args[0]); err != nil {
			return nil, grid.Wrap(errcode.CatInvalidUser, err, "user %s", args[0])
		}
		groups, err := catalog.ListGroups(ctx)
		if err != nil {
			return nil, err
		}
		var rows [][]string
		for _, grp := range groups {
			members, err := catalog.ListMembers(ctx, grp.Name)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				if m == args[0] {
					rows = append(rows, []string{grp.Name})
					break
				}
			}
		}
		return rows, nil
	}
}

// ============================================================================
// Quotas
// ============================================================================

type quotaClient struct{ client }

// UserQuota reports the bytes owned by user across the zone.
func (c *quotaClient) UserQuota(ctx context.Context, user string) (grid.Quota, error) {
	if err := c.conn.check(ctx); err != nil {
		return grid.Quota{}, err
	}
	if _, err := c.catalog().GetUser(ctx, user); err != nil {
		return grid.Quota{}, storeErr(err, errcode.CatInvalidUser, "user %s", user)
	}
	usage, err := c.usage(ctx)
	if err != nil {
		return grid.Quota{}, err
	}
	return c.quota(user, usage[user]), nil
}

func (c *quotaClient) List(ctx context.Context) ([]grid.Quota, error) {
	if err := c.conn.check(ctx); err != nil {
		return nil, err
	}
	users, err := c.catalog().ListUsers(ctx)
	if err != nil {
		return nil, storeErr(err, errcode.CatInvalidUser, "list users")
	}
	usage, err := c.usage(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]grid.Quota, 0, len(users))
	for _, u := range users {
		out = append(out, c.quota(u.Name, usage[u.Name]))
	}
	return out, nil
}

func (c *quotaClient) quota(user string, usage int64) grid.Quota {
	return grid.Quota{
		Username: user,
		Resource: c.conn.grid.opts.Resource,
		Limit:    c.conn.grid.opts.QuotaLimits[user],
		Usage:    usage,
	}
}

// usage sums data object sizes per owner below the zone collection.
func (c *quotaClient) usage(ctx context.Context) (map[string]int64, error) {
	usage := make(map[string]int64)
	var walk func(p string) error
	walk = func(p string) error {
		children, err := c.catalog().ListChildren(ctx, p)
		if err != nil {
			return storeErr(err, errcode.CatUnknownCollection, "list %s", p)
		}
		for _, child := range children {
			if child.IsCollection() {
				if err := walk(child.Path); err != nil {
					return err
				}
				continue
			}
			usage[child.Owner] += child.Size
		}
		return nil
	}
	if err := walk(c.conn.grid.zonePath()); err != nil {
		return nil, err
	}
	return usage, nil
}

// ============================================================================
// Audit trail
// ============================================================================

type auditClient struct{ client }

// List returns audit entries for target, oldest first. Administrators see
// every entry; other users only see their own actions.
func (c *auditClient) List(ctx context.Context, target string, limit int) ([]grid.AuditEntry, error) {
	if err := c.conn.check(ctx); err != nil {
		return nil, err
	}
	fetch := limit
	if !c.conn.admin {
		fetch = 0
	}
	records, err := c.catalog().ListAudit(ctx, target, fetch)
	if err != nil {
		return nil, storeErr(err, errcode.CatNoRowsFound, "audit of %s", target)
	}

	out := make([]grid.AuditEntry, 0, len(records))
	for _, r := range records {
		if !c.conn.admin && r.Actor != c.user() {
			continue
		}
		out = append(out, grid.AuditEntry{
			Seq:    r.Seq,
			Time:   r.Time,
			Actor:  r.Actor,
			Action: r.Action,
			Target: r.Target,
			Detail: r.Detail,
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ============================================================================
// Tickets
// ============================================================================

type ticketClient struct{ client }

func (c *ticketClient) Create(ctx context.Context, p string, mode grid.TicketMode) (grid.Ticket, error) {
	p, err := c.begin(ctx, p)
	if err != nil {
		return grid.Ticket{}, err
	}
	if _, err := c.object(ctx, p, errcode.UserFileDoesNotExist); err != nil {
		return grid.Ticket{}, err
	}

	need := metadata.AccessRead
	switch mode {
	case grid.TicketRead:
	case grid.TicketWrite:
		need = metadata.AccessWrite
	default:
		return grid.Ticket{}, grid.Errorf(errcode.CatInvalidArgument, "unknown ticket mode %q", mode)
	}
	if err := c.require(ctx, p, need); err != nil {
		return grid.Ticket{}, err
	}

	t := &metadata.Ticket{
		ID:    uuid.NewString(),
		Path:  p,
		Owner: c.user(),
		Mode:  string(mode),
	}
	if ttl := c.conn.grid.opts.TicketTTL; ttl > 0 {
		t.ExpiresAt = c.conn.grid.now().Add(ttl)
	}
	if err := c.catalog().PutTicket(ctx, t); err != nil {
		return grid.Ticket{}, storeErr(err, errcode.CatTicketInvalid, "ticket for %s", p)
	}
	c.audit(ctx, "ticket.create", p, "mode=%s", mode)
	return toTicket(t), nil
}

// Get returns a ticket. Expired tickets fail with CatTicketExpired.
func (c *ticketClient) Get(ctx context.Context, id string) (grid.Ticket, error) {
	t, err := c.ticket(ctx, id)
	if err != nil {
		return grid.Ticket{}, err
	}
	out := toTicket(t)
	if out.Expired(c.conn.grid.now()) {
		return out, grid.Errorf(errcode.CatTicketExpired, "ticket %s expired", id)
	}
	return out, nil
}

func (c *ticketClient) Delete(ctx context.Context, id string) error {
	t, err := c.ticket(ctx, id)
	if err != nil {
		return err
	}
	if t.Owner != c.user() && !c.conn.admin {
		return grid.Errorf(errcode.CatNoAccessPermission, "ticket %s belongs to %s", id, t.Owner)
	}
	if err := c.catalog().DeleteTicket(ctx, id); err != nil {
		return storeErr(err, errcode.CatTicketInvalid, "ticket %s", id)
	}
	c.audit(ctx, "ticket.delete", t.Path, "id=%s", id)
	return nil
}

// List returns the caller's tickets, or every ticket for administrators.
func (c *ticketClient) List(ctx context.Context) ([]grid.Ticket, error) {
	if err := c.conn.check(ctx); err != nil {
		return nil, err
	}
	tickets, err := c.catalog().ListTickets(ctx)
	if err != nil {
		return nil, storeErr(err, errcode.CatTicketInvalid, "list tickets")
	}
	out := make([]grid.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.Owner == c.user() || c.conn.admin {
			out = append(out, toTicket(t))
		}
	}
	return out, nil
}

func (c *ticketClient) ticket(ctx context.Context, id string) (*metadata.Ticket, error) {
	if err := c.conn.check(ctx); err != nil {
		return nil, err
	}
	t, err := c.catalog().GetTicket(ctx, id)
	if err != nil {
		return nil, storeErr(err, errcode.CatTicketInvalid, "ticket %s", id)
	}
	return t, nil
}

func toTicket(t *metadata.Ticket) grid.Ticket {
	return grid.Ticket{
		ID:        t.ID,
		Path:      t.Path,
		Owner:     t.Owner,
		Mode:      grid.TicketMode(t.Mode),
		ExpiresAt: t.ExpiresAt,
		UsesLimit: t.UsesLimit,
		UsesCount: t.UsesCount,
	}
}
