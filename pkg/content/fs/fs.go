// Package fs implements filesystem-based content storage.
//
// Each blob is one file under the base directory, named by its ContentID.
// Writes go to a temporary file that is renamed into place, so readers never
// observe a partially written blob.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdu-escience/gridgate/pkg/content"
)

// FSContentStore implements content.Store using the local filesystem.
//
// Thread Safety:
// Safe for concurrent use. Concurrent writes to the same ContentID are
// last-rename-wins.
type FSContentStore struct {
	basePath string
}

var _ content.Store = (*FSContentStore)(nil)

// NewFSContentStore creates a filesystem content store rooted at basePath,
// creating the directory with permissions 0755 if needed.
//
// Parameters:
//   - ctx: Context for cancellation
//   - basePath: Root directory for storing content files
//
// Returns:
//   - *FSContentStore: Initialized store
//   - error: Returns error if directory creation fails or context is cancelled
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if basePath == "" {
		return nil, errors.New("filesystem content store: path is required")
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSContentStore{basePath: basePath}, nil
}

// getFilePath returns the full path for a given content ID. IDs that would
// escape the base directory are rejected.
func (r *FSContentStore) getFilePath(id content.ContentID) (string, error) {
	name := string(id)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid content id %q", id)
	}
	return filepath.Join(r.basePath, name), nil
}

// ReadContent returns a reader for the content identified by id. The caller
// must close it.
func (r *FSContentStore) ReadContent(ctx context.Context, id content.ContentID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := r.getFilePath(id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return file, nil
}

// GetContentSize returns the size of the content in bytes.
func (r *FSContentStore) GetContentSize(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	filePath, err := r.getFilePath(id)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to stat content: %w", err)
	}
	return uint64(info.Size()), nil
}

// ContentExists checks if content with the given ID exists.
func (r *FSContentStore) ContentExists(ctx context.Context, id content.ContentID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	filePath, err := r.getFilePath(id)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check content existence: %w", err)
	}
	return true, nil
}

// WriteContent replaces the content of id with data.
//
// Large payloads are written in chunks with a context check before each
// chunk.
func (r *FSContentStore) WriteContent(ctx context.Context, id content.ContentID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := r.getFilePath(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.basePath, ".write-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	const chunkSize = 1 * 1024 * 1024 // 1MB chunks
	for offset := 0; offset < len(data); offset += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(offset+chunkSize, len(data))
		if _, err := tmp.Write(data[offset:end]); err != nil {
			return fmt.Errorf("failed to write content chunk: %w", err)
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close content: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to commit content: %w", err)
	}
	committed = true
	return nil
}

// DeleteContent removes the content. Deleting absent content succeeds.
func (r *FSContentStore) DeleteContent(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := r.getFilePath(id)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// ============================================================================
// Garbage collection
// ============================================================================

var _ content.GarbageCollectableStore = (*FSContentStore)(nil)

// ListAllContent returns the IDs of every committed blob. Temporary files of
// writes in progress are skipped.
func (r *FSContentStore) ListAllContent(ctx context.Context) ([]content.ContentID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}

	ids := make([]content.ContentID, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".write-") {
			continue
		}
		ids = append(ids, content.ContentID(e.Name()))
	}
	return ids, nil
}

// DeleteBatch removes ids one by one, collecting per-ID failures.
func (r *FSContentStore) DeleteBatch(ctx context.Context, ids []content.ContentID) (map[content.ContentID]error, error) {
	failures := make(map[content.ContentID]error)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return failures, err
		}
		if err := r.DeleteContent(ctx, id); err != nil {
			failures[id] = err
		}
	}
	return failures, nil
}
