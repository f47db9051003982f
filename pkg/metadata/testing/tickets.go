package testing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sdu-escience/gridgate/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunTicketTests(test *testing.T) {
	test.Run("Lifecycle", suite.TestTicket_Lifecycle)
}

func (suite *StoreTestSuite) TestTicket_Lifecycle(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	t1 := &metadata.Ticket{ID: "t1", Path: "/zone", Owner: "alice", Mode: "read", ExpiresAt: expires, UsesLimit: 3}
	require.NoError(test, store.PutTicket(ctx, t1))
	require.NoError(test, store.PutTicket(ctx, &metadata.Ticket{ID: "t0", Path: "/zone", Owner: "bob", Mode: "write"}))

	got, err := store.GetTicket(ctx, "t1")
	require.NoError(test, err)
	assert.Equal(test, "alice", got.Owner)
	assert.True(test, expires.Equal(got.ExpiresAt))
	assert.Equal(test, int64(3), got.UsesLimit)

	got.UsesCount = 1
	require.NoError(test, store.PutTicket(ctx, got))
	got, err = store.GetTicket(ctx, "t1")
	require.NoError(test, err)
	assert.Equal(test, int64(1), got.UsesCount)

	all, err := store.ListTickets(ctx)
	require.NoError(test, err)
	require.Len(test, all, 2)
	assert.Equal(test, "t0", all[0].ID)

	require.NoError(test, store.DeleteTicket(ctx, "t1"))
	_, err = store.GetTicket(ctx, "t1")
	assert.True(test, metadata.IsNotFound(err))
	assert.True(test, metadata.IsNotFound(store.DeleteTicket(ctx, "t1")))
}

func (suite *StoreTestSuite) RunAuditTests(test *testing.T) {
	test.Run("SequenceAndFilter", suite.TestAudit_SequenceAndFilter)
}

func (suite *StoreTestSuite) TestAudit_SequenceAndFilter(test *testing.T) {
	store := suite.newStoreWithRoot(test)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		target := "/zone/a"
		if i%2 == 1 {
			target = "/zone/b"
		}
		rec := &metadata.AuditRecord{Time: time.Now(), Actor: "alice", Action: "write", Target: target, Detail: fmt.Sprint(i)}
		require.NoError(test, store.AppendAudit(ctx, rec))
		assert.Equal(test, uint64(i+1), rec.Seq)
	}

	all, err := store.ListAudit(ctx, "", 0)
	require.NoError(test, err)
	require.Len(test, all, 5)
	assert.Equal(test, uint64(1), all[0].Seq)
	assert.Equal(test, uint64(5), all[4].Seq)

	onlyA, err := store.ListAudit(ctx, "/zone/a", 0)
	require.NoError(test, err)
	assert.Len(test, onlyA, 3)

	last, err := store.ListAudit(ctx, "", 2)
	require.NoError(test, err)
	require.Len(test, last, 2)
	assert.Equal(test, "3", last[0].Detail)
	assert.Equal(test, "4", last[1].Detail)
}
