package gc

import (
	"context"
	"io"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/content"
	contentmemory "github.com/sdu-escience/gridgate/pkg/content/memory"
	"github.com/sdu-escience/gridgate/pkg/metadata"
	metadatamemory "github.com/sdu-escience/gridgate/pkg/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture holds a catalog with two data objects (c1, c2) and a content store
// with those blobs plus two orphans.
func fixture(t *testing.T) (metadata.Store, *contentmemory.MemoryContentStore) {
	t.Helper()
	ctx := context.Background()

	catalog := metadatamemory.NewMemoryMetadataStore()
	for _, obj := range []*metadata.Object{
		{Path: "/", Type: metadata.ObjectTypeCollection},
		{Path: "/tempZone", Type: metadata.ObjectTypeCollection},
		{Path: "/tempZone/home", Type: metadata.ObjectTypeCollection},
		{Path: "/tempZone/home/a.txt", Type: metadata.ObjectTypeDataObject, ContentID: "c1"},
		{Path: "/tempZone/b.txt", Type: metadata.ObjectTypeDataObject, ContentID: "c2"},
	} {
		require.NoError(t, catalog.CreateObject(ctx, obj))
	}

	blobs, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)
	for _, id := range []content.ContentID{"c1", "c2", "orphan-1", "orphan-2"} {
		require.NoError(t, blobs.WriteContent(ctx, id, []byte(id)))
	}
	return catalog, blobs
}

func TestCollect_DeletesOrphans(t *testing.T) {
	catalog, blobs := fixture(t)
	ctx := context.Background()

	c, err := NewCollector(catalog, blobs, Config{BatchSize: 1})
	require.NoError(t, err)

	stats, err := c.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.ReferencedCount)
	assert.Equal(t, uint64(4), stats.ExistingCount)
	assert.Equal(t, uint64(2), stats.OrphanedCount)
	assert.Equal(t, uint64(2), stats.DeletedCount)
	assert.Zero(t, stats.FailedCount)
	assert.ElementsMatch(t, []content.ContentID{"orphan-1", "orphan-2"}, stats.Orphans)

	ids, err := blobs.ListAllContent(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []content.ContentID{"c1", "c2"}, ids)

	rc, err := blobs.ReadContent(ctx, "c1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "c1", string(data))
}

func TestCollect_DryRunKeepsContent(t *testing.T) {
	catalog, blobs := fixture(t)
	ctx := context.Background()

	c, err := NewCollector(catalog, blobs, Config{DryRun: true})
	require.NoError(t, err)

	stats, err := c.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.OrphanedCount)
	assert.Zero(t, stats.DeletedCount)

	ids, err := blobs.ListAllContent(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}

func TestCollect_NothingToDo(t *testing.T) {
	catalog, blobs := fixture(t)
	ctx := context.Background()
	require.NoError(t, blobs.DeleteContent(ctx, "orphan-1"))
	require.NoError(t, blobs.DeleteContent(ctx, "orphan-2"))

	c, err := NewCollector(catalog, blobs, Config{})
	require.NoError(t, err)

	stats, err := c.Collect(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.OrphanedCount)
	assert.Contains(t, stats.Summary(), "orphaned=0")
}

func TestCollect_CanceledContext(t *testing.T) {
	catalog, blobs := fixture(t)

	c, err := NewCollector(catalog, blobs, Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// plainStore hides the garbage collection methods of the memory store.
type plainStore struct{ content.Store }

func TestNewCollector_RequiresListableStore(t *testing.T) {
	catalog, blobs := fixture(t)

	_, err := NewCollector(catalog, plainStore{blobs}, Config{})
	assert.Error(t, err)
}
