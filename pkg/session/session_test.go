package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	contentmemory "github.com/sdu-escience/gridgate/pkg/content/memory"
	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/grid/embedded"
	"github.com/sdu-escience/gridgate/pkg/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// countingConn counts sub-client constructions on top of a real connection.
type countingConn struct {
	grid.Connection
	userBuilds  atomic.Int32
	groupErr    error
	closedCalls atomic.Int32
}

func (c *countingConn) NewUserClient() (grid.UserClient, error) {
	c.userBuilds.Add(1)
	return c.Connection.NewUserClient()
}

func (c *countingConn) NewGroupClient() (grid.GroupClient, error) {
	if c.groupErr != nil {
		return nil, c.groupErr
	}
	return c.Connection.NewGroupClient()
}

func (c *countingConn) Close() error {
	c.closedCalls.Add(1)
	return c.Connection.Close()
}

func newGrid(t *testing.T) *embedded.Grid {
	t.Helper()
	ctx := context.Background()
	blobs, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)
	g, err := embedded.New(ctx, memory.NewMemoryMetadataStore(), blobs, embedded.Options{
		Zone:          "tempZone",
		AdminUser:     "rods",
		AdminPassword: "rods",
		BcryptCost:    bcrypt.MinCost,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func adminAccount() grid.Account {
	return grid.Account{Host: "localhost", Port: 1247, Zone: "tempZone", Username: "rods", Password: "rods"}
}

func newCountingSession(t *testing.T) (*Session, *countingConn) {
	t.Helper()
	conn, err := newGrid(t).Connect(context.Background(), adminAccount())
	require.NoError(t, err)
	cc := &countingConn{Connection: conn}
	return New(adminAccount(), cc), cc
}

func TestOpen(t *testing.T) {
	g := newGrid(t)

	s, err := Open(context.Background(), g, adminAccount())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "tempZone", s.Zone())
	assert.Equal(t, "rods", s.Username())
	assert.Equal(t, "/tempZone/home/rods", s.HomePath())
	assert.Equal(t, grid.AuthStandard, s.AuthScheme())
	assert.Equal(t, grid.SSLDontCare, s.SSLPolicy())
	assert.False(t, s.Closed())
	assert.NoError(t, s.RequireOpen())
}

func TestOpen_Failures(t *testing.T) {
	_, err := Open(context.Background(), nil, adminAccount())
	assert.ErrorIs(t, err, ErrIllegalState)

	bad := adminAccount()
	bad.Password = "wrong"
	_, err = Open(context.Background(), newGrid(t), bad)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIllegalState)
}

func TestAccessorsReturnIdenticalInstance(t *testing.T) {
	s, cc := newCountingSession(t)

	first, err := s.Users()
	require.NoError(t, err)
	second, err := s.Users()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), cc.userBuilds.Load())

	accessors := map[string]func() (any, error){
		"collections": func() (any, error) { return s.Collections() },
		"dataObjects": func() (any, error) { return s.DataObjects() },
		"fileSystem":  func() (any, error) { return s.FileSystem() },
		"files":       func() (any, error) { return s.Files() },
		"rules":       func() (any, error) { return s.Rules() },
		"transfers":   func() (any, error) { return s.Transfers() },
		"quotas":      func() (any, error) { return s.Quotas() },
		"audits":      func() (any, error) { return s.Audits() },
		"tickets":     func() (any, error) { return s.Tickets() },
		"checksums":   func() (any, error) { return s.Checksums() },
		"queries":     func() (any, error) { return s.SpecificQueries() },
	}
	for name, get := range accessors {
		a, err := get()
		require.NoError(t, err, name)
		b, err := get()
		require.NoError(t, err, name)
		assert.Same(t, a, b, name)
	}
}

func TestConcurrentFirstUse(t *testing.T) {
	s, cc := newCountingSession(t)

	const workers = 32
	results := make([]grid.UserClient, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := s.Users()
			assert.NoError(t, err)
			results[i] = u
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), cc.userBuilds.Load())
	for _, u := range results {
		assert.Same(t, results[0], u)
	}
}

func TestConstructionFailureIsIllegalState(t *testing.T) {
	s, cc := newCountingSession(t)
	cc.groupErr = errors.New("factory broken")

	_, err := s.Groups()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalState)
	assert.Contains(t, err.Error(), "factory broken")

	// The failure is memoized like a success.
	cc.groupErr = nil
	_, err = s.Groups()
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestClose(t *testing.T) {
	s, cc := newCountingSession(t)

	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.Equal(t, int32(1), cc.closedCalls.Load())

	assert.ErrorIs(t, s.Close(), ErrClosed)
	assert.Equal(t, int32(1), cc.closedCalls.Load())

	assert.ErrorIs(t, s.RequireOpen(), ErrClosed)
	assert.ErrorIs(t, s.RequireOpen(), ErrIllegalState)

	_, err := s.Users()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Files()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, int32(0), cc.userBuilds.Load())
}
