// Command gridgate is a command line front end for the grid services.
//
// Every command loads the configuration, opens a session for the selected
// account and runs one file or administration operation through the
// instrumented gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/sdu-escience/gridgate/internal/logger"
	"github.com/sdu-escience/gridgate/pkg/command"
	"github.com/sdu-escience/gridgate/pkg/config"
	"github.com/sdu-escience/gridgate/pkg/grid/embedded"
	"github.com/sdu-escience/gridgate/pkg/gridfs"
	"github.com/sdu-escience/gridgate/pkg/metrics"
	"github.com/sdu-escience/gridgate/pkg/session"
	"github.com/spf13/cobra"
)

// Exit codes for the domain failures a script may want to tell apart.
const (
	exitFailure       = 1
	exitNotFound      = 2
	exitAlreadyExists = 3
	exitAccessDenied  = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gridgate:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, gridfs.ErrNotFound):
		return exitNotFound
	case errors.Is(err, gridfs.ErrAlreadyExists):
		return exitAlreadyExists
	case errors.Is(err, gridfs.ErrAccessDenied):
		return exitAccessDenied
	default:
		return exitFailure
	}
}

// globals holds the persistent flags.
type globals struct {
	configPath  string
	user        string
	password    string
	logLevel    string
	metricsPath string
}

func newRootCommand() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "gridgate",
		Short:         "Instrumented access to a data grid",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "configuration file (default: search "+strings.Join(config.DefaultSearchPaths(), ", ")+")")
	flags.StringVarP(&g.user, "user", "u", "", "grid user (default: the configured system account)")
	flags.StringVarP(&g.password, "password", "p", os.Getenv("GRIDGATE_PASSWORD"), "grid password (default: $GRIDGATE_PASSWORD)")
	flags.StringVar(&g.logLevel, "log-level", "", "log level override (DEBUG, INFO, WARN, ERROR)")
	flags.StringVar(&g.metricsPath, "metrics", "", "write Prometheus metrics to this file after the command")

	cmd.AddCommand(
		newListCommand(g),
		newMkdirCommand(g),
		newPutCommand(g),
		newGetCommand(g),
		newCatCommand(g),
		newRmCommand(g),
		newRmdirCommand(g),
		newExistsCommand(g),
		newStatCommand(g),
		newChecksumCommand(g),
		newVerifyCommand(g),
		newPermCommand(g),
		newUserCommand(g),
		newPasswdCommand(g),
		newGroupCommand(g),
		newConfigCommand(g),
		newGCCommand(g),
	)
	return cmd
}

// ============================================================================
// Application wiring
// ============================================================================

// app is everything one command needs. Close releases it in reverse order.
type app struct {
	cfg     *config.Configuration
	grid    *embedded.Grid
	gateway *command.Gateway
	session *session.Session
	files   *gridfs.FileService
	admin   *gridfs.AdminService

	metricsPath string
}

func (g *globals) loadConfig() (*config.Configuration, error) {
	var (
		cfg *config.Configuration
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger.SetLevel(level)
	return cfg, nil
}

func (g *globals) open(ctx context.Context) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	account, err := cfg.SystemAccount()
	if g.user != "" {
		account, err = cfg.Account(g.user, g.password), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: pass --user and --password", err)
	}

	m := config.InitializeMetrics(g.metricsPath != "")

	a := &app{cfg: cfg, metricsPath: g.metricsPath}
	if a.grid, err = config.CreateConnector(ctx, cfg, m); err != nil {
		return nil, err
	}
	if a.gateway, err = config.OpenGateway(cfg, m); err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.session, err = session.Open(ctx, a.grid, account); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.files = gridfs.NewFileService(a.session, a.gateway)
	a.admin = gridfs.NewAdminService(a.session, a.gateway)
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.session != nil {
		errs = append(errs, a.session.Close())
	}
	if a.gateway != nil {
		errs = append(errs, a.gateway.Sinks().Close())
	}
	if a.grid != nil {
		errs = append(errs, a.grid.Close())
	}
	if a.metricsPath != "" {
		errs = append(errs, metrics.WriteTextfile(a.metricsPath))
	}
	return errors.Join(errs...)
}

// resolve makes p absolute, relative paths being taken from the home
// collection.
func (a *app) resolve(p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Join(a.session.HomePath(), p)
}

// runner adapts a command body that needs an open application.
type runner func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error

func (g *globals) run(fn runner) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := g.open(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil {
				logger.Warn("Cleanup failed: %v", cerr)
			}
		}()

		return fn(ctx, cmd, a, args)
	}
}
