package badger

import (
	"context"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/metadata"
	metadatatesting "github.com/sdu-escience/gridgate/pkg/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBadgerMetadataStore runs the complete metadata.Store test suite
// against an in-memory BadgerDB.
func TestBadgerMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func() metadata.Store {
			store, err := NewBadgerMetadataStore(context.Background(), BadgerMetadataStoreConfig{InMemory: true})
			if err != nil {
				t.Fatalf("Failed to create BadgerMetadataStore: %v", err)
			}
			return store
		},
	}

	suite.Run(t)
}

// TestBadgerMetadataStore_Persistence verifies that the catalog and the audit
// counter survive closing and reopening the database.
func TestBadgerMetadataStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir})
	require.NoError(t, err)
	require.NoError(t, store.CreateObject(ctx, metadatatesting.Collection("/", "rods")))
	require.NoError(t, store.CreateObject(ctx, metadatatesting.DataObject("/a.txt", "alice", 7)))
	require.NoError(t, store.SetAccess(ctx, "/a.txt", "alice", metadata.AccessOwn))
	require.NoError(t, store.AppendAudit(ctx, &metadata.AuditRecord{Action: "put", Target: "/a.txt"}))
	require.NoError(t, store.Close())

	store, err = NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir})
	require.NoError(t, err)
	defer store.Close()

	obj, err := store.GetObject(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(7), obj.Size)

	level, err := store.GetAccess(ctx, "/a.txt", "alice")
	require.NoError(t, err)
	assert.Equal(t, metadata.AccessOwn, level)

	rec := &metadata.AuditRecord{Action: "delete", Target: "/a.txt"}
	require.NoError(t, store.AppendAudit(ctx, rec))
	assert.Equal(t, uint64(2), rec.Seq)
}

func TestNewBadgerMetadataStore_RequiresPath(t *testing.T) {
	_, err := NewBadgerMetadataStore(context.Background(), BadgerMetadataStoreConfig{})
	assert.Error(t, err)
}
