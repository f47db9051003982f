package embedded

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sdu-escience/gridgate/pkg/content"
	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
	"github.com/sdu-escience/gridgate/pkg/metadata"
)

// ============================================================================
// Streams
// ============================================================================

type fileClient struct{ client }

// Open returns a reader over the committed bytes of the data object p.
func (c *fileClient) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	p, err := c.begin(ctx, p)
	if err != nil {
		return nil, err
	}
	obj, err := c.dataObject(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := c.require(ctx, p, metadata.AccessRead); err != nil {
		return nil, err
	}

	rc, err := c.conn.grid.blobs.ReadContent(ctx, content.ContentID(obj.ContentID))
	if err != nil {
		return nil, grid.Wrap(errcode.UnixFileReadErr, err, "read %s", p)
	}
	return rc, nil
}

// dataObject fetches p and requires it to be a data object.
func (cl client) dataObject(ctx context.Context, p string) (*metadata.Object, error) {
	obj, err := cl.object(ctx, p, errcode.UserFileDoesNotExist)
	if err != nil {
		return nil, err
	}
	if obj.IsCollection() {
		return nil, grid.Errorf(errcode.CatUnknownFile, "%s is a collection", p)
	}
	return obj, nil
}

// Create opens p for writing. The parent collection must exist. Access is
// checked now; the bytes are committed when the writer is closed.
func (c *fileClient) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	p, err := c.begin(ctx, p)
	if err != nil {
		return nil, err
	}
	w, err := c.conn.grid.openWriter(ctx, c.client, p)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (g *Grid) openWriter(ctx context.Context, cl client, p string) (*objectWriter, error) {
	parent, err := cl.object(ctx, metadata.ParentPath(p), errcode.CatUnknownCollection)
	if err != nil {
		return nil, err
	}
	if !parent.IsCollection() {
		return nil, grid.Errorf(errcode.UserInputPathErr, "%s is not a collection", parent.Path)
	}

	existing, err := cl.catalog().GetObject(ctx, p)
	switch {
	case err == nil && existing.IsCollection():
		return nil, grid.Errorf(errcode.CatalogAlreadyHasItem, "%s exists as a collection", p)
	case err == nil:
		if err := cl.require(ctx, p, metadata.AccessWrite); err != nil {
			return nil, err
		}
	case metadata.IsNotFound(err):
		existing = nil
		if err := cl.require(ctx, parent.Path, metadata.AccessWrite); err != nil {
			return nil, err
		}
	default:
		return nil, storeErr(err, errcode.UserFileDoesNotExist, "%s", p)
	}

	return &objectWriter{ctx: ctx, cl: cl, path: p, existing: existing}, nil
}

// objectWriter buffers the written bytes and commits them on Close.
type objectWriter struct {
	ctx      context.Context
	cl       client
	path     string
	existing *metadata.Object

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

// Close commits the content and the catalog entry. The first Close wins;
// later calls fail with os.ErrClosed.
func (w *objectWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	w.closed = true
	return w.commit(w.buf.Bytes())
}

func (w *objectWriter) commit(data []byte) error {
	ctx := w.ctx
	g := w.cl.conn.grid
	if err := w.cl.conn.check(ctx); err != nil {
		return err
	}

	sum := sha256.Sum256(data)
	now := g.now()

	obj := w.existing
	if obj == nil {
		obj = &metadata.Object{
			Path:      w.path,
			Type:      metadata.ObjectTypeDataObject,
			Owner:     w.cl.user(),
			ContentID: uuid.NewString(),
			CreatedAt: now,
		}
	} else {
		copied := *obj
		obj = &copied
	}
	obj.Size = int64(len(data))
	obj.Checksum = sum[:]
	obj.ModifiedAt = now

	if err := g.blobs.WriteContent(ctx, content.ContentID(obj.ContentID), data); err != nil {
		return grid.Wrap(errcode.UnixFileWriteErr, err, "write %s", w.path)
	}

	if w.existing != nil {
		if err := w.cl.catalog().UpdateObject(ctx, obj); err != nil {
			return storeErr(err, errcode.UserFileDoesNotExist, "commit %s", w.path)
		}
		w.cl.audit(ctx, "obj.write", w.path, "size=%d", obj.Size)
		return nil
	}

	if err := w.cl.catalog().CreateObject(ctx, obj); err != nil {
		_ = g.blobs.DeleteContent(context.WithoutCancel(ctx), content.ContentID(obj.ContentID))
		return storeErr(err, errcode.CatUnknownCollection, "commit %s", w.path)
	}
	if err := w.cl.catalog().SetAccess(ctx, w.path, w.cl.user(), metadata.AccessOwn); err != nil {
		return storeErr(err, errcode.UserFileDoesNotExist, "commit %s", w.path)
	}
	w.cl.audit(ctx, "obj.create", w.path, "size=%d", obj.Size)
	return nil
}

// ============================================================================
// Transfers
// ============================================================================

type transferClient struct{ client }

// Put uploads the local file to remotePath.
func (c *transferClient) Put(ctx context.Context, localPath, remotePath string, overwrite bool) error {
	remotePath, err := c.begin(ctx, remotePath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return grid.Wrap(errcode.UnixFileReadErr, err, "read local file %s", localPath)
	}

	if !overwrite {
		if _, err := c.catalog().GetObject(ctx, remotePath); err == nil {
			return grid.Errorf(errcode.OverwriteWithoutForce, "%s exists", remotePath)
		}
	}

	w, err := c.conn.grid.openWriter(ctx, c.client, remotePath)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return grid.Wrap(errcode.UnixFileWriteErr, err, "write %s", remotePath)
	}
	return w.Close()
}

// Get downloads remotePath into the local file.
func (c *transferClient) Get(ctx context.Context, remotePath, localPath string, overwrite bool) error {
	remotePath, err := c.begin(ctx, remotePath)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(localPath); err == nil {
			return grid.Errorf(errcode.OverwriteWithoutForce, "local file %s exists", localPath)
		}
	}

	files := &fileClient{c.client}
	rc, err := files.Open(ctx, remotePath)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return grid.Wrap(errcode.UnixFileReadErr, err, "read %s", remotePath)
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return grid.Wrap(errcode.UnixFileWriteErr, err, "write local file %s", localPath)
	}
	return nil
}

// ============================================================================
// Checksums
// ============================================================================

type checksumClient struct{ client }

// Compute returns the SHA-256 digest recorded at commit time, computing and
// storing it first for objects that have none.
func (c *checksumClient) Compute(ctx context.Context, p string) (grid.Checksum, error) {
	p, err := c.begin(ctx, p)
	if err != nil {
		return grid.Checksum{}, err
	}
	obj, err := c.dataObject(ctx, p)
	if err != nil {
		return grid.Checksum{}, err
	}
	if err := c.require(ctx, p, metadata.AccessRead); err != nil {
		return grid.Checksum{}, err
	}

	if len(obj.Checksum) == 0 {
		sum, err := c.digest(ctx, obj)
		if err != nil {
			return grid.Checksum{}, err
		}
		obj.Checksum = sum
		if err := c.catalog().UpdateObject(ctx, obj); err != nil {
			return grid.Checksum{}, storeErr(err, errcode.UserFileDoesNotExist, "%s", p)
		}
	}
	return grid.Checksum{Algorithm: ChecksumAlgorithm, Value: obj.Checksum}, nil
}

func (c *checksumClient) digest(ctx context.Context, obj *metadata.Object) ([]byte, error) {
	rc, err := c.conn.grid.blobs.ReadContent(ctx, content.ContentID(obj.ContentID))
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			// An object without content is empty.
			sum := sha256.Sum256(nil)
			return sum[:], nil
		}
		return nil, grid.Wrap(errcode.UnixFileReadErr, err, "read %s", obj.Path)
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return nil, grid.Wrap(errcode.UnixFileReadErr, err, "read %s", obj.Path)
	}
	return h.Sum(nil), nil
}
