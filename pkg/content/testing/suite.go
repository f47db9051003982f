package testing

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a comprehensive test suite for content.Store
// implementations.
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func() content.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("WriteAndRead", suite.TestWriteAndRead)
	test.Run("Overwrite", suite.TestOverwrite)
	test.Run("ReadMissing", suite.TestReadMissing)
	test.Run("EmptyContent", suite.TestEmptyContent)
	test.Run("LargeContent", suite.TestLargeContent)
	test.Run("Delete", suite.TestDelete)
	test.Run("ContextCanceled", suite.TestContextCanceled)
	test.Run("GarbageCollection", suite.RunGCTests)
}

func readAll(test *testing.T, store content.Store, id content.ContentID) []byte {
	test.Helper()
	rc, err := store.ReadContent(context.Background(), id)
	require.NoError(test, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(test, err)
	return data
}

func (suite *StoreTestSuite) TestWriteAndRead(test *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	require.NoError(test, store.WriteContent(ctx, "a", []byte("hello grid")))

	assert.Equal(test, []byte("hello grid"), readAll(test, store, "a"))

	size, err := store.GetContentSize(ctx, "a")
	require.NoError(test, err)
	assert.Equal(test, uint64(10), size)

	ok, err := store.ContentExists(ctx, "a")
	require.NoError(test, err)
	assert.True(test, ok)
}

func (suite *StoreTestSuite) TestOverwrite(test *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	require.NoError(test, store.WriteContent(ctx, "a", []byte("first version")))
	require.NoError(test, store.WriteContent(ctx, "a", []byte("v2")))

	assert.Equal(test, []byte("v2"), readAll(test, store, "a"))
}

func (suite *StoreTestSuite) TestReadMissing(test *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	_, err := store.ReadContent(ctx, "missing")
	assert.ErrorIs(test, err, content.ErrContentNotFound)

	_, err = store.GetContentSize(ctx, "missing")
	assert.ErrorIs(test, err, content.ErrContentNotFound)

	ok, err := store.ContentExists(ctx, "missing")
	require.NoError(test, err)
	assert.False(test, ok)
}

func (suite *StoreTestSuite) TestEmptyContent(test *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	require.NoError(test, store.WriteContent(ctx, "empty", nil))

	assert.Empty(test, readAll(test, store, "empty"))
	size, err := store.GetContentSize(ctx, "empty")
	require.NoError(test, err)
	assert.Equal(test, uint64(0), size)
}

func (suite *StoreTestSuite) TestLargeContent(test *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	data := make([]byte, 3<<20)
	_, err := rand.Read(data)
	require.NoError(test, err)

	require.NoError(test, store.WriteContent(ctx, "large", data))
	assert.True(test, bytes.Equal(data, readAll(test, store, "large")))
}

func (suite *StoreTestSuite) TestDelete(test *testing.T) {
	store := suite.NewStore()
	ctx := context.Background()

	require.NoError(test, store.WriteContent(ctx, "a", []byte("x")))
	require.NoError(test, store.DeleteContent(ctx, "a"))

	ok, err := store.ContentExists(ctx, "a")
	require.NoError(test, err)
	assert.False(test, ok)

	// Deleting twice is not an error.
	require.NoError(test, store.DeleteContent(ctx, "a"))
}

func (suite *StoreTestSuite) TestContextCanceled(test *testing.T) {
	store := suite.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.WriteContent(ctx, "a", []byte("x"))
	assert.ErrorIs(test, err, context.Canceled)

	_, err = store.ReadContent(ctx, "a")
	assert.ErrorIs(test, err, context.Canceled)
}
