package testing

import (
	"context"
	"testing"
	"time"

	"github.com/sdu-escience/gridgate/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunAccessTests(test *testing.T) {
	test.Run("SetGetRevoke", suite.TestAccess_SetGetRevoke)
	test.Run("List", suite.TestAccess_List)
	test.Run("MissingObject", suite.TestAccess_MissingObject)
}

func (suite *StoreTestSuite) TestAccess_SetGetRevoke(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	level, err := store.GetAccess(ctx, "/zone", "alice")
	require.NoError(test, err)
	assert.Equal(test, metadata.AccessNone, level)

	require.NoError(test, store.SetAccess(ctx, "/zone", "alice", metadata.AccessWrite))
	level, err = store.GetAccess(ctx, "/zone", "alice")
	require.NoError(test, err)
	assert.Equal(test, metadata.AccessWrite, level)

	require.NoError(test, store.SetAccess(ctx, "/zone", "alice", metadata.AccessNone))
	level, err = store.GetAccess(ctx, "/zone", "alice")
	require.NoError(test, err)
	assert.Equal(test, metadata.AccessNone, level)
}

func (suite *StoreTestSuite) TestAccess_List(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	require.NoError(test, store.SetAccess(ctx, "/zone", "carol", metadata.AccessRead))
	require.NoError(test, store.SetAccess(ctx, "/zone", "alice", metadata.AccessOwn))

	entries, err := store.ListAccess(ctx, "/zone")
	require.NoError(test, err)
	assert.Equal(test, []metadata.ACLEntry{
		{Path: "/zone", Principal: "alice", Level: metadata.AccessOwn},
		{Path: "/zone", Principal: "carol", Level: metadata.AccessRead},
	}, entries)

	// Entries of a sibling path must not leak into the listing.
	require.NoError(test, store.CreateObject(ctx, Collection("/zone2", "rods")))
	require.NoError(test, store.SetAccess(ctx, "/zone2", "dave", metadata.AccessRead))
	entries, err = store.ListAccess(ctx, "/zone")
	require.NoError(test, err)
	assert.Len(test, entries, 2)
}

func (suite *StoreTestSuite) TestAccess_MissingObject(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	err := store.SetAccess(ctx, "/zone/ghost", "alice", metadata.AccessRead)
	assert.True(test, metadata.IsNotFound(err))

	_, err = store.GetAccess(ctx, "/zone/ghost", "alice")
	assert.True(test, metadata.IsNotFound(err))
}

func (suite *StoreTestSuite) RunUserTests(test *testing.T) {
	test.Run("Lifecycle", suite.TestUser_Lifecycle)
	test.Run("Duplicate", suite.TestUser_Duplicate)
	test.Run("DeleteRemovesMembership", suite.TestUser_DeleteRemovesMembership)
}

func (suite *StoreTestSuite) TestUser_Lifecycle(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	u := &metadata.User{Name: "alice", Zone: "zone", Type: "rodsuser", PasswordHash: []byte("h1"), CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}
	require.NoError(test, store.CreateUser(ctx, u))
	require.NoError(test, store.CreateUser(ctx, &metadata.User{Name: "bob", Zone: "zone", Type: "rodsadmin"}))

	got, err := store.GetUser(ctx, "alice")
	require.NoError(test, err)
	assert.Equal(test, "rodsuser", got.Type)
	assert.Equal(test, []byte("h1"), got.PasswordHash)

	got.PasswordHash = []byte("h2")
	require.NoError(test, store.UpdateUser(ctx, got))
	got, err = store.GetUser(ctx, "alice")
	require.NoError(test, err)
	assert.Equal(test, []byte("h2"), got.PasswordHash)

	users, err := store.ListUsers(ctx)
	require.NoError(test, err)
	require.Len(test, users, 2)
	assert.Equal(test, "alice", users[0].Name)
	assert.Equal(test, "bob", users[1].Name)

	require.NoError(test, store.DeleteUser(ctx, "alice"))
	_, err = store.GetUser(ctx, "alice")
	assert.True(test, metadata.IsNotFound(err))
	assert.True(test, metadata.IsNotFound(store.DeleteUser(ctx, "alice")))
	assert.True(test, metadata.IsNotFound(store.UpdateUser(ctx, &metadata.User{Name: "alice"})))
}

func (suite *StoreTestSuite) TestUser_Duplicate(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	require.NoError(test, store.CreateUser(ctx, &metadata.User{Name: "alice"}))
	err := store.CreateUser(ctx, &metadata.User{Name: "alice"})
	assert.True(test, metadata.IsAlreadyExists(err))
}

func (suite *StoreTestSuite) TestUser_DeleteRemovesMembership(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	require.NoError(test, store.CreateUser(ctx, &metadata.User{Name: "alice"}))
	require.NoError(test, store.CreateGroup(ctx, &metadata.Group{Name: "lab"}))
	require.NoError(test, store.AddMember(ctx, "lab", "alice"))

	require.NoError(test, store.DeleteUser(ctx, "alice"))

	members, err := store.ListMembers(ctx, "lab")
	require.NoError(test, err)
	assert.Empty(test, members)
}

func (suite *StoreTestSuite) RunGroupTests(test *testing.T) {
	test.Run("Lifecycle", suite.TestGroup_Lifecycle)
	test.Run("Membership", suite.TestGroup_Membership)
	test.Run("DeleteNonEmpty", suite.TestGroup_DeleteNonEmpty)
}

func (suite *StoreTestSuite) TestGroup_Lifecycle(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	require.NoError(test, store.CreateGroup(ctx, &metadata.Group{Name: "lab", Zone: "zone"}))
	assert.True(test, metadata.IsAlreadyExists(store.CreateGroup(ctx, &metadata.Group{Name: "lab"})))

	g, err := store.GetGroup(ctx, "lab")
	require.NoError(test, err)
	assert.Equal(test, "zone", g.Zone)

	groups, err := store.ListGroups(ctx)
	require.NoError(test, err)
	assert.Len(test, groups, 1)

	require.NoError(test, store.DeleteGroup(ctx, "lab"))
	_, err = store.GetGroup(ctx, "lab")
	assert.True(test, metadata.IsNotFound(err))
	assert.True(test, metadata.IsNotFound(store.DeleteGroup(ctx, "lab")))
}

func (suite *StoreTestSuite) TestGroup_Membership(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	require.NoError(test, store.CreateGroup(ctx, &metadata.Group{Name: "lab"}))
	require.NoError(test, store.CreateUser(ctx, &metadata.User{Name: "bob"}))
	require.NoError(test, store.CreateUser(ctx, &metadata.User{Name: "alice"}))

	assert.True(test, metadata.IsNotFound(store.AddMember(ctx, "nolab", "alice")))
	assert.True(test, metadata.IsNotFound(store.AddMember(ctx, "lab", "nobody")))

	require.NoError(test, store.AddMember(ctx, "lab", "bob"))
	require.NoError(test, store.AddMember(ctx, "lab", "alice"))
	assert.True(test, metadata.IsAlreadyExists(store.AddMember(ctx, "lab", "alice")))

	members, err := store.ListMembers(ctx, "lab")
	require.NoError(test, err)
	assert.Equal(test, []string{"alice", "bob"}, members)

	require.NoError(test, store.RemoveMember(ctx, "lab", "bob"))
	assert.True(test, metadata.IsNotFound(store.RemoveMember(ctx, "lab", "bob")))

	members, err = store.ListMembers(ctx, "lab")
	require.NoError(test, err)
	assert.Equal(test, []string{"alice"}, members)

	_, err = store.ListMembers(ctx, "nolab")
	assert.True(test, metadata.IsNotFound(err))
}

func (suite *StoreTestSuite) TestGroup_DeleteNonEmpty(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	require.NoError(test, store.CreateGroup(ctx, &metadata.Group{Name: "lab"}))
	require.NoError(test, store.CreateUser(ctx, &metadata.User{Name: "alice"}))
	require.NoError(test, store.AddMember(ctx, "lab", "alice"))

	assert.True(test, metadata.IsNotEmpty(store.DeleteGroup(ctx, "lab")))
}
