package gridfs

import (
	"context"

	"github.com/sdu-escience/gridgate/pkg/command"
	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/session"
)

// AdminService manages users, groups and group membership. Mutations check
// that their targets exist first so callers get a precise domain error.
type AdminService struct {
	service
}

// NewAdminService creates an AdminService over s. The session's account
// needs administrator rights for every mutation; the grid enforces that, not
// this package, and a refusal surfaces as ErrGateway.
func NewAdminService(s *session.Session, gw *command.Gateway) *AdminService {
	return &AdminService{service: newService(s, gw)}
}

// ============================================================================
// Users
// ============================================================================

// CreateUser adds a user without a password. Use ModifyUserPassword to make
// the account usable.
func (a *AdminService) CreateUser(ctx context.Context, name string, userType grid.UserType) error {
	return do(ctx, a.service, "createUser", []any{name, userType}, func(ctx context.Context) error {
		if err := requireName("user name", name); err != nil {
			return err
		}
		users, err := a.session.Users()
		if err != nil {
			return err
		}
		exists, err := a.userExists(ctx, users, name)
		if err != nil {
			return err
		}
		if exists {
			return UserAlreadyExists(name, nil)
		}

		err = users.Add(ctx, grid.User{Name: name, Zone: a.session.Zone(), Type: userType}, "")
		if isDuplicate(err) {
			return UserAlreadyExists(name, err)
		}
		return wrapNative(err)
	}, command.Expect(ErrAlreadyExists))
}

// DeleteUser removes the user name.
//
// Parameters:
//   - ctx: Context for cancellation
//   - name: User name in the session's zone
//
// Returns:
//   - error: ErrNotFound (expected) when no such user exists, or
//     ErrGateway; group memberships of the user go with it
func (a *AdminService) DeleteUser(ctx context.Context, name string) error {
	return do(ctx, a.service, "deleteUser", []any{name}, func(ctx context.Context) error {
		users, err := a.requireUser(ctx, name)
		if err != nil {
			return err
		}
		err = users.Remove(ctx, name)
		if isUserNotFound(err) {
			return UserNotFound(name, err)
		}
		return wrapNative(err)
	}, command.Expect(ErrNotFound))
}

// ModifyUserPassword sets the password of name. It needs an administrator
// session.
func (a *AdminService) ModifyUserPassword(ctx context.Context, name, newPassword string) error {
	return do(ctx, a.service, "modifyUserPassword", []any{name, command.Redacted}, func(ctx context.Context) error {
		if err := requireName("password", newPassword); err != nil {
			return err
		}
		users, err := a.requireUser(ctx, name)
		if err != nil {
			return err
		}
		err = users.SetPassword(ctx, name, newPassword)
		if isUserNotFound(err) {
			return UserNotFound(name, err)
		}
		return wrapNative(err)
	}, command.Expect(ErrNotFound))
}

// ModifyOwnPassword changes the session user's password.
func (a *AdminService) ModifyOwnPassword(ctx context.Context, currentPassword, newPassword string) error {
	return do(ctx, a.service, "modifyOwnPassword", []any{command.Redacted, command.Redacted}, func(ctx context.Context) error {
		if err := requireName("password", newPassword); err != nil {
			return err
		}
		users, err := a.session.Users()
		if err != nil {
			return err
		}
		return wrapNative(users.ChangeOwnPassword(ctx, currentPassword, newPassword))
	})
}

// UserExists reports whether name is a known user.
func (a *AdminService) UserExists(ctx context.Context, name string) (bool, error) {
	return call(ctx, a.service, "userExists", []any{name}, func(ctx context.Context) (bool, error) {
		if err := requireName("user name", name); err != nil {
			return false, err
		}
		users, err := a.session.Users()
		if err != nil {
			return false, err
		}
		return a.userExists(ctx, users, name)
	})
}

func (a *AdminService) userExists(ctx context.Context, users grid.UserClient, name string) (bool, error) {
	_, err := users.Find(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case isUserNotFound(err):
		return false, nil
	default:
		return false, wrapNative(err)
	}
}

func (a *AdminService) requireUser(ctx context.Context, name string) (grid.UserClient, error) {
	if err := requireName("user name", name); err != nil {
		return nil, err
	}
	users, err := a.session.Users()
	if err != nil {
		return nil, err
	}
	ok, err := a.userExists(ctx, users, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, UserNotFound(name, nil)
	}
	return users, nil
}

// ============================================================================
// Groups
// ============================================================================

// CreateGroup adds an empty group. A name already taken by a group fails
// with ErrAlreadyExists.
func (a *AdminService) CreateGroup(ctx context.Context, name string) error {
	return do(ctx, a.service, "createGroup", []any{name}, func(ctx context.Context) error {
		if err := requireName("group name", name); err != nil {
			return err
		}
		groups, err := a.session.Groups()
		if err != nil {
			return err
		}
		_, err = groups.Find(ctx, name)
		switch {
		case err == nil:
			return GroupAlreadyExists(name, nil)
		case !isGroupNotFound(err):
			return wrapNative(err)
		}

		err = groups.Add(ctx, name)
		if isDuplicate(err) {
			return GroupAlreadyExists(name, err)
		}
		return wrapNative(err)
	}, command.Expect(ErrAlreadyExists))
}

// DeleteGroup removes an empty group. A group with members fails with
// ErrCollectionNotEmpty.
func (a *AdminService) DeleteGroup(ctx context.Context, name string) error {
	return do(ctx, a.service, "deleteGroup", []any{name}, func(ctx context.Context) error {
		groups, err := a.requireGroup(ctx, name)
		if err != nil {
			return err
		}
		err = groups.Remove(ctx, name)
		switch {
		case isCollectionNotEmpty(err):
			return NewCollectionNotEmpty(name, err)
		case isGroupNotFound(err):
			return GroupNotFound(name, err)
		}
		return wrapNative(err)
	}, command.Expect(ErrNotFound, ErrCollectionNotEmpty))
}

// AddUserToGroup fails with ErrNotFound for an unknown group or user and
// with ErrAlreadyExists when user is already a member.
func (a *AdminService) AddUserToGroup(ctx context.Context, group, user string) error {
	return do(ctx, a.service, "addUserToGroup", []any{group, user}, func(ctx context.Context) error {
		groups, err := a.requireGroup(ctx, group)
		if err != nil {
			return err
		}
		if _, err := a.requireUser(ctx, user); err != nil {
			return err
		}
		err = groups.AddMember(ctx, group, user)
		switch {
		case isDuplicate(err):
			return NewAlreadyExists(KindUser, user, err)
		case isGroupNotFound(err):
			return GroupNotFound(group, err)
		case isUserNotFound(err):
			return UserNotFound(user, err)
		}
		return wrapNative(err)
	}, command.Expect(ErrNotFound, ErrAlreadyExists))
}

// RemoveUserFromGroup fails with ErrNotFound when the group is unknown or
// user is not a member.
func (a *AdminService) RemoveUserFromGroup(ctx context.Context, group, user string) error {
	return do(ctx, a.service, "removeUserFromGroup", []any{group, user}, func(ctx context.Context) error {
		groups, err := a.requireGroup(ctx, group)
		if err != nil {
			return err
		}
		if err := requireName("user name", user); err != nil {
			return err
		}
		err = groups.RemoveMember(ctx, group, user)
		switch {
		case isNotMember(err), isUserNotFound(err):
			return UserNotFound(user, err)
		case isGroupNotFound(err):
			return GroupNotFound(group, err)
		}
		return wrapNative(err)
	}, command.Expect(ErrNotFound))
}

// ListGroupMembers returns the member names of group.
func (a *AdminService) ListGroupMembers(ctx context.Context, group string) ([]string, error) {
	return call(ctx, a.service, "listGroupMembers", []any{group}, func(ctx context.Context) ([]string, error) {
		groups, err := a.requireGroup(ctx, group)
		if err != nil {
			return nil, err
		}
		members, err := groups.Members(ctx, group)
		if err != nil {
			if isGroupNotFound(err) {
				return nil, GroupNotFound(group, err)
			}
			return nil, wrapNative(err)
		}
		return members, nil
	}, command.Expect(ErrNotFound))
}

func (a *AdminService) requireGroup(ctx context.Context, name string) (grid.GroupClient, error) {
	if err := requireName("group name", name); err != nil {
		return nil, err
	}
	groups, err := a.session.Groups()
	if err != nil {
		return nil, err
	}
	if _, err := groups.Find(ctx, name); err != nil {
		if isGroupNotFound(err) {
			return nil, GroupNotFound(name, err)
		}
		return nil, wrapNative(err)
	}
	return groups, nil
}
