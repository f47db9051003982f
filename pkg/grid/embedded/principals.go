package embedded

import (
	"context"

	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
	"github.com/sdu-escience/gridgate/pkg/metadata"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// Users
// ============================================================================

type userClient struct{ client }

func (c *userClient) Add(ctx context.Context, user grid.User, password string) error {
	if err := c.conn.check(ctx); err != nil {
		return err
	}
	if err := c.requireAdmin("adding users"); err != nil {
		return err
	}
	if user.Name == "" {
		return grid.Errorf(errcode.SysInvalidInputParam, "user name is empty")
	}
	if user.Zone != "" && user.Zone != c.conn.grid.opts.Zone {
		return grid.Errorf(errcode.CatInvalidZone, "zone %q is not served here", user.Zone)
	}
	if user.Type == "" {
		user.Type = grid.RodsUser
	}
	if _, err := grid.ParseUserType(string(user.Type)); err != nil {
		return grid.Wrap(errcode.CatInvalidArgument, err, "user %s", user.Name)
	}
	if user.Name == PublicGroup {
		return grid.Errorf(errcode.CatalogAlreadyHasItem, "%s is a reserved group", user.Name)
	}

	if err := c.conn.grid.createUser(ctx, user.Name, user.Type, password); err != nil {
		return storeErr(err, errcode.CatInvalidUser, "add user %s", user.Name)
	}
	c.audit(ctx, "user.add", user.Name, "type=%s", user.Type)
	return nil
}

func (c *userClient) Remove(ctx context.Context, name string) error {
	if err := c.conn.check(ctx); err != nil {
		return err
	}
	if err := c.requireAdmin("removing users"); err != nil {
		return err
	}
	if err := c.catalog().DeleteUser(ctx, name); err != nil {
		return storeErr(err, errcode.CatInvalidUser, "user %s", name)
	}
	c.audit(ctx, "user.remove", name, "")
	return nil
}

func (c *userClient) Find(ctx context.Context, name string) (grid.User, error) {
	if err := c.conn.check(ctx); err != nil {
		return grid.User{}, err
	}
	u, err := c.catalog().GetUser(ctx, name)
	if err != nil {
		return grid.User{}, storeErr(err, errcode.CatInvalidUser, "user %s", name)
	}
	return toUser(u), nil
}

func (c *userClient) List(ctx context.Context) ([]grid.User, error) {
	if err := c.conn.check(ctx); err != nil {
		return nil, err
	}
	users, err := c.catalog().ListUsers(ctx)
	if err != nil {
		return nil, storeErr(err, errcode.CatInvalidUser, "list users")
	}
	out := make([]grid.User, 0, len(users))
	for _, u := range users {
		out = append(out, toUser(u))
	}
	return out, nil
}

func (c *userClient) SetPassword(ctx context.Context, name, password string) error {
	if err := c.conn.check(ctx); err != nil {
		return err
	}
	if err := c.requireAdmin("setting passwords"); err != nil {
		return err
	}
	if err := c.setPassword(ctx, name, password); err != nil {
		return err
	}
	c.audit(ctx, "user.password", name, "by administrator")
	return nil
}

func (c *userClient) ChangeOwnPassword(ctx context.Context, current, password string) error {
	if err := c.conn.check(ctx); err != nil {
		return err
	}
	u, err := c.catalog().GetUser(ctx, c.user())
	if err != nil {
		return storeErr(err, errcode.CatInvalidUser, "user %s", c.user())
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(current)) != nil {
		return grid.Errorf(errcode.CatInvalidAuthentication, "current password does not match")
	}
	if err := c.setPassword(ctx, u.Name, password); err != nil {
		return err
	}
	c.audit(ctx, "user.password", u.Name, "by owner")
	return nil
}

func (c *userClient) setPassword(ctx context.Context, name, password string) error {
	if password == "" {
		return grid.Errorf(errcode.SysInvalidInputParam, "password is empty")
	}
	u, err := c.catalog().GetUser(ctx, name)
	if err != nil {
		return storeErr(err, errcode.CatInvalidUser, "user %s", name)
	}
	hash, err := c.conn.grid.hashPassword(password)
	if err != nil {
		return grid.Wrap(errcode.SysInvalidInputParam, err, "hash password of %s", name)
	}
	u.PasswordHash = hash
	if err := c.catalog().UpdateUser(ctx, u); err != nil {
		return storeErr(err, errcode.CatInvalidUser, "user %s", name)
	}
	return nil
}

// ============================================================================
// Groups
// ============================================================================

type groupClient struct{ client }

func (c *groupClient) Add(ctx context.Context, name string) error {
	if err := c.conn.check(ctx); err != nil {
		return err
	}
	if err := c.requireAdmin("adding groups"); err != nil {
		return err
	}
	if name == "" {
		return grid.Errorf(errcode.SysInvalidInputParam, "group name is empty")
	}
	if name == PublicGroup {
		return grid.Errorf(errcode.CatalogAlreadyHasItem, "group %s already exists", name)
	}
	if _, err := c.catalog().GetUser(ctx, name); err == nil {
		return grid.Errorf(errcode.CatalogAlreadyHasItem, "%s is already a user", name)
	}

	err := c.catalog().CreateGroup(ctx, &metadata.Group{
		Name:      name,
		Zone:      c.conn.grid.opts.Zone,
		CreatedAt: c.conn.grid.now(),
	})
	if err != nil {
		return storeErr(err, errcode.CatInvalidGroup, "add group %s", name)
	}
	c.audit(ctx, "group.add", name, "")
	return nil
}

func (c *groupClient) Remove(ctx context.Context, name string) error {
	if err := c.conn.check(ctx); err != nil {
		return err
	}
	if err := c.requireAdmin("removing groups"); err != nil {
		return err
	}
	if err := c.catalog().DeleteGroup(ctx, name); err != nil {
		return storeErr(err, errcode.CatInvalidGroup, "group %s", name)
	}
	c.audit(ctx, "group.remove", name, "")
	return nil
}

func (c *groupClient) Find(ctx context.Context, name string) (grid.Group, error) {
	if err := c.conn.check(ctx); err != nil {
		return grid.Group{}, err
	}
	g, err := c.catalog().GetGroup(ctx, name)
	if err != nil {
		return grid.Group{}, storeErr(err, errcode.CatInvalidGroup, "group %s", name)
	}
	return grid.Group{Name: g.Name, Zone: g.Zone}, nil
}

func (c *groupClient) List(ctx context.Context) ([]grid.Group, error) {
	if err := c.conn.check(ctx); err != nil {
		return nil, err
	}
	groups, err := c.catalog().ListGroups(ctx)
	if err != nil {
		return nil, storeErr(err, errcode.CatInvalidGroup, "list groups")
	}
	out := make([]grid.Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, grid.Group{Name: g.Name, Zone: g.Zone})
	}
	return out, nil
}

func (c *groupClient) AddMember(ctx context.Context, group, user string) error {
	if err := c.conn.check(ctx); err != nil {
		return err
	}
	if err := c.requireAdmin("changing group membership"); err != nil {
		return err
	}
	if _, err := c.catalog().GetGroup(ctx, group); err != nil {
		return storeErr(err, errcode.CatInvalidGroup, "group %s", group)
	}
	if _, err := c.catalog().GetUser(ctx, user); err != nil {
		return storeErr(err, errcode.CatInvalidUser, "user %s", user)
	}
	if err := c.catalog().AddMember(ctx, group, user); err != nil {
		return storeErr(err, errcode.CatInvalidGroup, "add %s to %s", user, group)
	}
	c.audit(ctx, "group.member.add", group, "user=%s", user)
	return nil
}

func (c *groupClient) RemoveMember(ctx context.Context, group, user string) error {
	if err := c.conn.check(ctx); err != nil {
		return err
	}
	if err := c.requireAdmin("changing group membership"); err != nil {
		return err
	}
	if _, err := c.catalog().GetGroup(ctx, group); err != nil {
		return storeErr(err, errcode.CatInvalidGroup, "group %s", group)
	}
	if err := c.catalog().RemoveMember(ctx, group, user); err != nil {
		return storeErr(err, errcode.CatUserNotInGroup, "%s is not a member of %s", user, group)
	}
	c.audit(ctx, "group.member.remove", group, "user=%s", user)
	return nil
}

func (c *groupClient) Members(ctx context.Context, group string) ([]string, error) {
	if err := c.conn.check(ctx); err != nil {
		return nil, err
	}
	members, err := c.catalog().ListMembers(ctx, group)
	if err != nil {
		return nil, storeErr(err, errcode.CatInvalidGroup, "group %s", group)
	}
	return members, nil
}
