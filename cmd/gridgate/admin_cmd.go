package main

import (
	"context"
	"fmt"

	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/spf13/cobra"
)

func newUserCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage grid users",
	}

	var userType string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a user and its home collection",
		Args:  cobra.ExactArgs(1),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			t, err := grid.ParseUserType(userType)
			if err != nil {
				return err
			}
			return a.admin.CreateUser(ctx, args[0], t)
		}),
	}
	add.Flags().StringVarP(&userType, "type", "t", string(grid.RodsUser), "user type (rodsuser, rodsadmin, groupadmin)")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "del <name>",
			Short: "Delete a user",
			Args:  cobra.ExactArgs(1),
			RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				return a.admin.DeleteUser(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "passwd <name> <new-password>",
			Short: "Set the password of a user",
			Args:  cobra.ExactArgs(2),
			RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				return a.admin.ModifyUserPassword(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "exists <name>",
			Short: "Report whether a user exists",
			Args:  cobra.ExactArgs(1),
			RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				ok, err := a.admin.UserExists(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			}),
		},
	)
	return cmd
}

func newPasswdCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <current-password> <new-password>",
		Short: "Change your own password",
		Args:  cobra.ExactArgs(2),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			return a.admin.ModifyOwnPassword(ctx, args[0], args[1])
		}),
	}
}

func newGroupCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage user groups",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <group>",
			Short: "Create a group",
			Args:  cobra.ExactArgs(1),
			RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				return a.admin.CreateGroup(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "del <group>",
			Short: "Delete an empty group",
			Args:  cobra.ExactArgs(1),
			RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				return a.admin.DeleteGroup(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "adduser <group> <user>",
			Short: "Add a user to a group",
			Args:  cobra.ExactArgs(2),
			RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				return a.admin.AddUserToGroup(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "rmuser <group> <user>",
			Short: "Remove a user from a group",
			Args:  cobra.ExactArgs(2),
			RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				return a.admin.RemoveUserFromGroup(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "members <group>",
			Short: "List the members of a group",
			Args:  cobra.ExactArgs(1),
			RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				members, err := a.admin.ListGroupMembers(ctx, args[0])
				if err != nil {
					return err
				}
				for _, m := range members {
					fmt.Fprintln(cmd.OutOrStdout(), m)
				}
				return nil
			}),
		},
	)
	return cmd
}
