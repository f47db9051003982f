package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/gridfs"
	"github.com/spf13/cobra"
)

func newListCommand(g *globals) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a collection (default: home)",
		Args:  cobra.MaximumNArgs(1),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			var (
				entries []grid.Entry
				err     error
			)
			if len(args) == 0 {
				entries, err = a.files.ListObjectsAtHome(ctx)
			} else {
				entries, err = a.files.ListObjectsAtPath(ctx, a.resolve(args[0]))
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !long {
				for _, e := range entries {
					fmt.Fprintln(out, e.Name)
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Type, e.Owner, humanize.IBytes(uint64(e.Size)), e.ModifiedAt.Format(time.RFC3339), e.Name)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show type, owner, size and modification time")
	return cmd
}

func newMkdirCommand(g *globals) *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			return a.files.CreateDirectory(ctx, a.resolve(args[0]), parents)
		}),
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parent collections")
	return cmd
}

func newPutCommand(g *globals) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "Upload a local file",
		Args:  cobra.ExactArgs(2),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			return a.files.Upload(ctx, args[0], a.resolve(args[1]), force)
		}),
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing data object")
	return cmd
}

func newGetCommand(g *globals) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "get <remote> <local>",
		Short: "Download a data object",
		Args:  cobra.ExactArgs(2),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			return a.files.Download(ctx, a.resolve(args[0]), args[1], force)
		}),
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing local file")
	return cmd
}

func newCatCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <remote>",
		Short: "Print a data object",
		Args:  cobra.ExactArgs(1),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			rc, err := a.files.OpenForReading(ctx, a.resolve(args[0]))
			if err != nil {
				return err
			}
			defer func() { _ = rc.Close() }()
			_, err = io.Copy(cmd.OutOrStdout(), rc)
			return err
		}),
	}
}

func newRmCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a data object or an empty collection",
		Args:  cobra.ExactArgs(1),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			p := a.resolve(args[0])
			deleted, err := a.files.Delete(ctx, p)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%s was not deleted: collection is not empty (use rmdir)", p)
			}
			return nil
		}),
	}
}

func newRmdirCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <path>",
		Short: "Delete a collection and everything below it",
		Args:  cobra.ExactArgs(1),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			return a.files.DeleteDirectory(ctx, a.resolve(args[0]))
		}),
	}
}

func newExistsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <path>",
		Short: "Report whether a path exists",
		Args:  cobra.ExactArgs(1),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			ok, err := a.files.Exists(ctx, a.resolve(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		}),
	}
}

func newStatCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Describe a data object or collection",
		Args:  cobra.ExactArgs(1),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			e, err := a.files.Stat(ctx, a.resolve(args[0]))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "path:\t%s\n", e.Path)
			fmt.Fprintf(w, "type:\t%s\n", e.Type)
			fmt.Fprintf(w, "size:\t%d (%s)\n", e.Size, humanize.IBytes(uint64(e.Size)))
			fmt.Fprintf(w, "owner:\t%s\n", e.Owner)
			fmt.Fprintf(w, "created:\t%s\n", e.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "modified:\t%s (%s)\n", e.ModifiedAt.Format(time.RFC3339), humanize.Time(e.ModifiedAt))
			return w.Flush()
		}),
	}
}

func newChecksumCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "checksum <remote>",
		Short: "Print the server-side checksum of a data object",
		Args:  cobra.ExactArgs(1),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			sum, err := a.files.ComputeChecksum(ctx, a.resolve(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum)
			return nil
		}),
	}
}

func newVerifyCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <local> <remote>",
		Short: "Compare a local file with a data object by checksum",
		Args:  cobra.ExactArgs(2),
		RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			remote := a.resolve(args[1])
			ok, err := a.files.VerifyChecksumOfLocalFile(ctx, args[0], remote)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("checksum mismatch between %s and %s", args[0], remote)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		}),
	}
}

// ============================================================================
// Permissions
// ============================================================================

func newPermCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perm",
		Short: "Manage permissions on data objects and collections",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "grant <path> <READ|READ_WRITE|OWN> <principal>",
			Short: "Grant a user or group a permission",
			Args:  cobra.ExactArgs(3),
			RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				perm, err := gridfs.ParsePermission(args[1])
				if err != nil {
					return err
				}
				return a.files.GrantPermissionsOnObject(ctx, a.resolve(args[0]), perm, args[2])
			}),
		},
		&cobra.Command{
			Use:   "revoke <path> <principal>",
			Short: "Revoke every permission of a user or group",
			Args:  cobra.ExactArgs(2),
			RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				return a.files.RevokeAllPermissionsOnObject(ctx, a.resolve(args[0]), args[1])
			}),
		},
		&cobra.Command{
			Use:   "get <path> [principal]",
			Short: "Print the permission of a principal (default: yourself)",
			Args:  cobra.RangeArgs(1, 2),
			RunE: g.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
				var (
					perm *gridfs.Permission
					err  error
				)
				if len(args) == 2 {
					perm, err = a.files.GetPermissionsOnObjectFor(ctx, a.resolve(args[0]), args[1])
				} else {
					perm, err = a.files.GetPermissionsOnObject(ctx, a.resolve(args[0]))
				}
				if err != nil {
					return err
				}
				if perm == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "NONE")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), perm.String())
				return nil
			}),
		},
	)
	return cmd
}
