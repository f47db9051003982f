package testing

import (
	"context"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGCTests executes the GarbageCollectableStore tests. Stores without the
// capability are skipped.
func (suite *StoreTestSuite) RunGCTests(test *testing.T) {
	test.Run("ListAllContent_Empty", suite.TestListAllContentEmpty)
	test.Run("ListAllContent_Multiple", suite.TestListAllContentMultiple)
	test.Run("DeleteBatch", suite.TestDeleteBatch)
	test.Run("DeleteBatch_Empty", suite.TestDeleteBatchEmpty)
}

func (suite *StoreTestSuite) gcStore(test *testing.T) content.GarbageCollectableStore {
	test.Helper()
	gc, ok := suite.NewStore().(content.GarbageCollectableStore)
	if !ok {
		test.Skip("store does not implement GarbageCollectableStore")
	}
	return gc
}

func (suite *StoreTestSuite) TestListAllContentEmpty(test *testing.T) {
	store := suite.gcStore(test)

	ids, err := store.ListAllContent(context.Background())
	require.NoError(test, err)
	assert.Empty(test, ids)
}

func (suite *StoreTestSuite) TestListAllContentMultiple(test *testing.T) {
	store := suite.gcStore(test)
	ctx := context.Background()

	want := []content.ContentID{"list-1", "list-2", "list-3"}
	for _, id := range want {
		require.NoError(test, store.WriteContent(ctx, id, []byte(id)))
	}

	ids, err := store.ListAllContent(ctx)
	require.NoError(test, err)
	assert.ElementsMatch(test, want, ids)
}

func (suite *StoreTestSuite) TestDeleteBatch(test *testing.T) {
	store := suite.gcStore(test)
	ctx := context.Background()

	for _, id := range []content.ContentID{"keep", "drop-1", "drop-2"} {
		require.NoError(test, store.WriteContent(ctx, id, []byte("x")))
	}

	failures, err := store.DeleteBatch(ctx, []content.ContentID{"drop-1", "drop-2", "never-written"})
	require.NoError(test, err)
	assert.Empty(test, failures)

	ids, err := store.ListAllContent(ctx)
	require.NoError(test, err)
	assert.Equal(test, []content.ContentID{"keep"}, ids)
}

func (suite *StoreTestSuite) TestDeleteBatchEmpty(test *testing.T) {
	store := suite.gcStore(test)

	failures, err := store.DeleteBatch(context.Background(), nil)
	require.NoError(test, err)
	assert.Empty(test, failures)
}
