package testing

import (
	"context"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunObjectTests(test *testing.T) {
	test.Run("CreateAndGet", suite.TestCreateAndGetObject)
	test.Run("CreateDuplicate", suite.TestCreateObject_Duplicate)
	test.Run("CreateMissingParent", suite.TestCreateObject_MissingParent)
	test.Run("CreateUnderDataObject", suite.TestCreateObject_ParentNotCollection)
	test.Run("RelativePath", suite.TestObject_RelativePath)
	test.Run("Update", suite.TestUpdateObject)
	test.Run("UpdateMissing", suite.TestUpdateObject_NotFound)
	test.Run("ListChildrenSorted", suite.TestListChildren_Sorted)
	test.Run("ListChildrenMissing", suite.TestListChildren_NotFound)
	test.Run("DeleteNonEmpty", suite.TestDeleteObject_NotEmpty)
	test.Run("Delete", suite.TestDeleteObject)
	test.Run("ContextCanceled", suite.TestObject_ContextCanceled)
}

// TestCreateAndGetObject verifies that a stored object is returned intact.
func (suite *StoreTestSuite) TestCreateAndGetObject(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	obj := DataObject("/zone/a.txt", "alice", 42)
	require.NoError(test, store.CreateObject(ctx, obj))

	got, err := store.GetObject(ctx, "/zone//a.txt")
	require.NoError(test, err)
	assert.Equal(test, "/zone/a.txt", got.Path)
	assert.Equal(test, "a.txt", got.Name())
	assert.Equal(test, metadata.ObjectTypeDataObject, got.Type)
	assert.Equal(test, int64(42), got.Size)
	assert.Equal(test, "alice", got.Owner)
	assert.Equal(test, obj.ContentID, got.ContentID)
	assert.Equal(test, obj.Checksum, got.Checksum)
	assert.True(test, obj.ModifiedAt.Equal(got.ModifiedAt))
}

func (suite *StoreTestSuite) TestCreateObject_Duplicate(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	err := store.CreateObject(ctx, Collection("/zone", "bob"))
	assert.True(test, metadata.IsAlreadyExists(err), "got %v", err)
}

func (suite *StoreTestSuite) TestCreateObject_MissingParent(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	err := store.CreateObject(ctx, Collection("/zone/a/b", "alice"))
	assert.True(test, metadata.IsNotFound(err), "got %v", err)
}

func (suite *StoreTestSuite) TestCreateObject_ParentNotCollection(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	require.NoError(test, store.CreateObject(ctx, DataObject("/zone/file", "alice", 1)))
	err := store.CreateObject(ctx, DataObject("/zone/file/child", "alice", 1))
	assert.ErrorIs(test, err, metadata.InvalidArgument)
}

func (suite *StoreTestSuite) TestObject_RelativePath(test *testing.T) {
	store := suite.newStoreWithRoot(test)

	_, err := store.GetObject(context.Background(), "zone")
	assert.ErrorIs(test, err, metadata.InvalidArgument)
}

func (suite *StoreTestSuite) TestUpdateObject(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	obj := DataObject("/zone/a.txt", "alice", 0)
	require.NoError(test, store.CreateObject(ctx, obj))

	obj.Size = 128
	obj.Checksum = []byte{1, 2, 3}
	require.NoError(test, store.UpdateObject(ctx, obj))

	got, err := store.GetObject(ctx, "/zone/a.txt")
	require.NoError(test, err)
	assert.Equal(test, int64(128), got.Size)
	assert.Equal(test, []byte{1, 2, 3}, got.Checksum)
}

func (suite *StoreTestSuite) TestUpdateObject_NotFound(test *testing.T) {
	store := suite.newStoreWithRoot(test)

	err := store.UpdateObject(context.Background(), DataObject("/zone/ghost", "alice", 0))
	assert.True(test, metadata.IsNotFound(err), "got %v", err)
}

func (suite *StoreTestSuite) TestListChildren_Sorted(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	require.NoError(test, store.CreateObject(ctx, DataObject("/zone/c", "alice", 1)))
	require.NoError(test, store.CreateObject(ctx, Collection("/zone/a", "alice")))
	require.NoError(test, store.CreateObject(ctx, DataObject("/zone/b", "alice", 2)))
	require.NoError(test, store.CreateObject(ctx, DataObject("/zone/a/nested", "alice", 3)))

	children, err := store.ListChildren(ctx, "/zone")
	require.NoError(test, err)

	var names []string
	for _, c := range children {
		names = append(names, c.Name())
	}
	assert.Equal(test, []string{"a", "b", "c"}, names)
	assert.True(test, children[0].IsCollection())

	root, err := store.ListChildren(ctx, "/")
	require.NoError(test, err)
	require.Len(test, root, 1)
	assert.Equal(test, "/zone", root[0].Path)
}

func (suite *StoreTestSuite) TestListChildren_NotFound(test *testing.T) {
	store := suite.newStoreWithRoot(test)

	_, err := store.ListChildren(context.Background(), "/nope")
	assert.True(test, metadata.IsNotFound(err), "got %v", err)
}

func (suite *StoreTestSuite) TestDeleteObject_NotEmpty(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	require.NoError(test, store.CreateObject(ctx, DataObject("/zone/a", "alice", 1)))

	err := store.DeleteObject(ctx, "/zone")
	assert.True(test, metadata.IsNotEmpty(err), "got %v", err)
}

// TestDeleteObject verifies that a deleted object disappears together with
// its access control list and its entry in the parent listing.
func (suite *StoreTestSuite) TestDeleteObject(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	require.NoError(test, store.CreateObject(ctx, DataObject("/zone/a", "alice", 1)))
	require.NoError(test, store.SetAccess(ctx, "/zone/a", "alice", metadata.AccessOwn))

	require.NoError(test, store.DeleteObject(ctx, "/zone/a"))

	_, err := store.GetObject(ctx, "/zone/a")
	assert.True(test, metadata.IsNotFound(err))

	children, err := store.ListChildren(ctx, "/zone")
	require.NoError(test, err)
	assert.Empty(test, children)

	err = store.DeleteObject(ctx, "/zone/a")
	assert.True(test, metadata.IsNotFound(err))

	// Recreating the path must not resurrect the old access entries.
	require.NoError(test, store.CreateObject(ctx, DataObject("/zone/a", "bob", 1)))
	level, err := store.GetAccess(ctx, "/zone/a", "alice")
	require.NoError(test, err)
	assert.Equal(test, metadata.AccessNone, level)
}

func (suite *StoreTestSuite) TestObject_ContextCanceled(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetObject(ctx, "/zone")
	assert.ErrorIs(test, err, context.Canceled)

	err = store.CreateObject(ctx, Collection("/zone/x", "alice"))
	assert.ErrorIs(test, err, context.Canceled)
}
