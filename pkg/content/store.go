// Package content stores the bytes of data objects.
//
// The catalog (pkg/metadata) records which ContentID belongs to which data
// object; this package only moves opaque bytes. Implementations live in the
// memory, fs and s3 sub-packages and are verified by pkg/content/testing.
package content

import (
	"context"
	"errors"
	"io"
)

// ContentID identifies one blob in a content store.
type ContentID string

// ErrContentNotFound indicates the requested content does not exist.
//
// Implementations wrap it with context:
//
//	return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
var ErrContentNotFound = errors.New("content not found")

// Store is the interface every content back end implements.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Concurrent writes to the
// same ContentID are last-write-wins.
type Store interface {
	// ReadContent returns a reader for the whole blob. The caller must close
	// it. Fails with ErrContentNotFound when the blob is absent.
	ReadContent(ctx context.Context, id ContentID) (io.ReadCloser, error)

	// WriteContent replaces the blob with data.
	WriteContent(ctx context.Context, id ContentID, data []byte) error

	// DeleteContent removes the blob. Deleting an absent blob succeeds.
	DeleteContent(ctx context.Context, id ContentID) error

	// ContentExists never fails merely because the blob is absent.
	ContentExists(ctx context.Context, id ContentID) (bool, error)

	// GetContentSize fails with ErrContentNotFound when the blob is absent.
	GetContentSize(ctx context.Context, id ContentID) (uint64, error)
}

// GarbageCollectableStore is a Store that can enumerate and bulk-delete its
// blobs. Orphan collection (pkg/gc) requires it.
type GarbageCollectableStore interface {
	Store

	// ListAllContent returns every ContentID in the store, in no particular
	// order.
	ListAllContent(ctx context.Context) ([]ContentID, error)

	// DeleteBatch removes ids. The returned map holds per-ID failures; a
	// non-nil error means the batch as a whole failed.
	DeleteBatch(ctx context.Context, ids []ContentID) (map[ContentID]error, error)
}
