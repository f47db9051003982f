package fs

import (
	"context"
	"os"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/content"
	contenttesting "github.com/sdu-escience/gridgate/pkg/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFSContentStore runs the complete content.Store test suite
// against the FSContentStore implementation.
func TestFSContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func() content.Store {
			store, err := NewFSContentStore(context.Background(), t.TempDir())
			if err != nil {
				t.Fatalf("Failed to create FSContentStore: %v", err)
			}
			return store
		},
	}

	suite.Run(t)
}

func TestFSContentStore_RejectsEscapingIDs(t *testing.T) {
	store, err := NewFSContentStore(context.Background(), t.TempDir())
	require.NoError(t, err)

	for _, id := range []content.ContentID{"", "..", "../x", "a/b"} {
		assert.Error(t, store.WriteContent(context.Background(), id, []byte("x")), "id %q", id)
	}
}

func TestFSContentStore_NoTemporaryLeftovers(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSContentStore(context.Background(), dir)
	require.NoError(t, err)

	require.NoError(t, store.WriteContent(context.Background(), "a", []byte("one")))
	require.NoError(t, store.WriteContent(context.Background(), "a", []byte("two")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Name())
}
