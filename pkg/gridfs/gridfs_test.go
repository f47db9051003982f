package gridfs

import (
	"context"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/command"
	contentmemory "github.com/sdu-escience/gridgate/pkg/content/memory"
	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/grid/embedded"
	"github.com/sdu-escience/gridgate/pkg/metadata/memory"
	"github.com/sdu-escience/gridgate/pkg/session"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	zone      = "tempZone"
	adminUser = "rods"
	adminPass = "rodspass"
)

// env is an embedded grid plus a gateway recording into memory sinks.
type env struct {
	grid   *embedded.Grid
	access *command.MemorySink
	perf   *command.MemorySink
	errs   *command.MemorySink
	gw     *command.Gateway
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	blobs, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)
	g, err := embedded.New(ctx, memory.NewMemoryMetadataStore(), blobs, embedded.Options{
		Zone:          zone,
		Resource:      "demoResc",
		AdminUser:     adminUser,
		AdminPassword: adminPass,
		BcryptCost:    bcrypt.MinCost,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	e := &env{
		grid:   g,
		access: command.NewMemorySink(),
		perf:   command.NewMemorySink(),
		errs:   command.NewMemorySink(),
	}
	e.gw = command.NewGateway(command.Sinks{Access: e.access, Performance: e.perf, Error: e.errs})
	return e
}

func account(user, password string) grid.Account {
	return grid.Account{
		Host:            "localhost",
		Port:            1247,
		Zone:            zone,
		Username:        user,
		Password:        password,
		DefaultResource: "demoResc",
	}
}

func (e *env) open(t *testing.T, acct grid.Account) *session.Session {
	t.Helper()
	s, err := session.Open(context.Background(), e.grid, acct)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func (e *env) admin(t *testing.T) (*FileService, *AdminService) {
	t.Helper()
	s := e.open(t, account(adminUser, adminPass))
	return NewFileService(s, e.gw), NewAdminService(s, e.gw)
}

// alice creates the user alice and returns a file service for her.
func (e *env) alice(t *testing.T) *FileService {
	t.Helper()
	ctx := context.Background()
	_, admin := e.admin(t)
	require.NoError(t, admin.CreateUser(ctx, "alice", grid.RodsUser))
	require.NoError(t, admin.ModifyUserPassword(ctx, "alice", "secret"))
	return NewFileService(e.open(t, account("alice", "secret")), e.gw)
}

func (e *env) failures() []command.Failure {
	var out []command.Failure
	for _, r := range e.errs.Records() {
		out = append(out, r.(command.Failure))
	}
	return out
}

func (e *env) lastFailure(t *testing.T) command.Failure {
	t.Helper()
	fs := e.failures()
	require.NotEmpty(t, fs)
	return fs[len(fs)-1]
}

func writeFile(t *testing.T, f *FileService, path string, data []byte) {
	t.Helper()
	w, err := f.OpenForWriting(context.Background(), path)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}
