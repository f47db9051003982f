package embedded

import (
	"context"

	"github.com/sdu-escience/gridgate/pkg/content"
	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
	"github.com/sdu-escience/gridgate/pkg/metadata"
)

// ============================================================================
// Collections
// ============================================================================

type collectionClient struct{ client }

// Create makes the collection p. With recursive set every missing ancestor is
// created too; otherwise a missing parent fails with UserFileDoesNotExist.
// Creating an existing collection succeeds.
func (c *collectionClient) Create(ctx context.Context, p string, recursive bool) error {
	p, err := c.begin(ctx, p)
	if err != nil {
		return err
	}

	if existing, err := c.catalog().GetObject(ctx, p); err == nil {
		if existing.IsCollection() {
			return nil
		}
		return grid.Errorf(errcode.CatalogAlreadyHasItem, "%s exists as a data object", p)
	}

	var missing []string
	for cur := p; ; cur = metadata.ParentPath(cur) {
		obj, err := c.catalog().GetObject(ctx, cur)
		if err == nil {
			if !obj.IsCollection() {
				return grid.Errorf(errcode.UserInputPathErr, "%s is not a collection", cur)
			}
			break
		}
		if !metadata.IsNotFound(err) {
			return storeErr(err, errcode.CatUnknownCollection, "%s", cur)
		}
		missing = append(missing, cur)
		if cur == "/" {
			break
		}
	}

	if len(missing) > 1 && !recursive {
		return grid.Errorf(errcode.UserFileDoesNotExist, "parent collection of %s does not exist", p)
	}

	// missing is ordered from p up to the first existing ancestor.
	anchor := metadata.ParentPath(missing[len(missing)-1])
	if err := c.require(ctx, anchor, metadata.AccessWrite); err != nil {
		return err
	}

	for i := len(missing) - 1; i >= 0; i-- {
		if err := c.mkdir(ctx, missing[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *collectionClient) mkdir(ctx context.Context, p string) error {
	now := c.conn.grid.now()
	err := c.catalog().CreateObject(ctx, &metadata.Object{
		Path:       p,
		Type:       metadata.ObjectTypeCollection,
		Owner:      c.user(),
		CreatedAt:  now,
		ModifiedAt: now,
	})
	if err != nil && !metadata.IsAlreadyExists(err) {
		return storeErr(err, errcode.CatUnknownCollection, "create %s", p)
	}
	if err == nil {
		if err := c.catalog().SetAccess(ctx, p, c.user(), metadata.AccessOwn); err != nil {
			return storeErr(err, errcode.CatUnknownCollection, "create %s", p)
		}
		c.audit(ctx, "coll.create", p, "")
	}
	return nil
}

// Remove deletes the collection p. Without force it must be empty.
func (c *collectionClient) Remove(ctx context.Context, p string, force bool) error {
	p, err := c.begin(ctx, p)
	if err != nil {
		return err
	}
	if p == "/" || p == c.conn.grid.zonePath() || p == c.conn.grid.homeRoot() {
		return grid.Errorf(errcode.CatInsufficientPrivilege, "%s cannot be removed", p)
	}

	obj, err := c.object(ctx, p, errcode.CatUnknownCollection)
	if err != nil {
		return err
	}
	if !obj.IsCollection() {
		return grid.Errorf(errcode.CatUnknownCollection, "%s is not a collection", p)
	}
	if err := c.require(ctx, p, metadata.AccessWrite); err != nil {
		return err
	}

	if !force {
		if err := c.catalog().DeleteObject(ctx, p); err != nil {
			return storeErr(err, errcode.CatUnknownCollection, "remove %s", p)
		}
		c.audit(ctx, "coll.remove", p, "")
		return nil
	}

	if err := c.removeTree(ctx, obj); err != nil {
		return err
	}
	c.audit(ctx, "coll.remove", p, "force")
	return nil
}

// removeTree deletes obj and every descendant, children first.
func (c *collectionClient) removeTree(ctx context.Context, obj *metadata.Object) error {
	if obj.IsCollection() {
		children, err := c.catalog().ListChildren(ctx, obj.Path)
		if err != nil {
			return storeErr(err, errcode.CatUnknownCollection, "list %s", obj.Path)
		}
		for _, child := range children {
			if err := c.removeTree(ctx, child); err != nil {
				return err
			}
		}
	}
	return c.conn.grid.deleteObject(ctx, obj)
}

func (c *collectionClient) List(ctx context.Context, p string) ([]grid.Entry, error) {
	p, err := c.begin(ctx, p)
	if err != nil {
		return nil, err
	}
	obj, err := c.object(ctx, p, errcode.CatUnknownCollection)
	if err != nil {
		return nil, err
	}
	if !obj.IsCollection() {
		return nil, grid.Errorf(errcode.CatUnknownCollection, "%s is not a collection", p)
	}
	if err := c.require(ctx, p, metadata.AccessRead); err != nil {
		return nil, err
	}

	children, err := c.catalog().ListChildren(ctx, p)
	if err != nil {
		return nil, storeErr(err, errcode.CatUnknownCollection, "list %s", p)
	}
	out := make([]grid.Entry, 0, len(children))
	for _, child := range children {
		out = append(out, toEntry(child))
	}
	return out, nil
}

// deleteObject removes one catalog entry and, for data objects, its bytes.
func (g *Grid) deleteObject(ctx context.Context, obj *metadata.Object) error {
	if err := g.catalog.DeleteObject(ctx, obj.Path); err != nil {
		return storeErr(err, errcode.CatUnknownFile, "remove %s", obj.Path)
	}
	if obj.ContentID == "" {
		return nil
	}
	if err := g.blobs.DeleteContent(ctx, content.ContentID(obj.ContentID)); err != nil {
		return grid.Wrap(errcode.UnixFileWriteErr, err, "remove content of %s", obj.Path)
	}
	return nil
}

// ============================================================================
// Data objects
// ============================================================================

type dataObjectClient struct{ client }

func (c *dataObjectClient) Remove(ctx context.Context, p string) error {
	p, err := c.begin(ctx, p)
	if err != nil {
		return err
	}
	obj, err := c.object(ctx, p, errcode.CatUnknownFile)
	if err != nil {
		return err
	}
	if obj.IsCollection() {
		return grid.Errorf(errcode.CatUnknownFile, "%s is a collection", p)
	}
	if err := c.require(ctx, p, metadata.AccessWrite); err != nil {
		return err
	}
	if err := c.conn.grid.deleteObject(ctx, obj); err != nil {
		return err
	}
	c.audit(ctx, "obj.remove", p, "size=%d", obj.Size)
	return nil
}

// Rename moves a data object. The target must not exist and its parent must
// be a writable collection. Access entries move with the object.
func (c *dataObjectClient) Rename(ctx context.Context, from, to string) error {
	from, err := c.begin(ctx, from)
	if err != nil {
		return err
	}
	if to, err = c.begin(ctx, to); err != nil {
		return err
	}

	obj, err := c.object(ctx, from, errcode.CatUnknownFile)
	if err != nil {
		return err
	}
	if obj.IsCollection() {
		return grid.Errorf(errcode.CatUnknownFile, "%s is a collection", from)
	}
	if err := c.require(ctx, from, metadata.AccessWrite); err != nil {
		return err
	}

	parent, err := c.object(ctx, metadata.ParentPath(to), errcode.CatUnknownCollection)
	if err != nil {
		return err
	}
	if !parent.IsCollection() {
		return grid.Errorf(errcode.CatUnknownCollection, "%s is not a collection", parent.Path)
	}
	if err := c.require(ctx, parent.Path, metadata.AccessWrite); err != nil {
		return err
	}

	acl, err := c.catalog().ListAccess(ctx, from)
	if err != nil {
		return storeErr(err, errcode.CatUnknownFile, "%s", from)
	}

	moved := *obj
	moved.Path = to
	moved.ModifiedAt = c.conn.grid.now()
	if err := c.catalog().CreateObject(ctx, &moved); err != nil {
		return storeErr(err, errcode.CatUnknownCollection, "rename to %s", to)
	}
	for _, e := range acl {
		if err := c.catalog().SetAccess(ctx, to, e.Principal, e.Level); err != nil {
			return storeErr(err, errcode.CatUnknownFile, "%s", to)
		}
	}
	if err := c.catalog().DeleteObject(ctx, from); err != nil {
		return storeErr(err, errcode.CatUnknownFile, "%s", from)
	}
	c.audit(ctx, "obj.rename", from, "to=%s", to)
	return nil
}

// ============================================================================
// File system
// ============================================================================

type fileSystemClient struct{ client }

func (c *fileSystemClient) Stat(ctx context.Context, p string) (grid.Entry, error) {
	p, err := c.begin(ctx, p)
	if err != nil {
		return grid.Entry{}, err
	}
	obj, err := c.object(ctx, p, errcode.UserFileDoesNotExist)
	if err != nil {
		return grid.Entry{}, err
	}
	return toEntry(obj), nil
}

func (c *fileSystemClient) Exists(ctx context.Context, p string) (bool, error) {
	p, err := c.begin(ctx, p)
	if err != nil {
		return false, err
	}
	_, err = c.catalog().GetObject(ctx, p)
	if metadata.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, errcode.UserFileDoesNotExist, "%s", p)
	}
	return true, nil
}

// SetPermission sets principal's access on p. The caller must own p and the
// principal must be a known user or group. PermNone revokes.
func (c *fileSystemClient) SetPermission(ctx context.Context, p, principal string, perm grid.NativePermission) error {
	p, err := c.begin(ctx, p)
	if err != nil {
		return err
	}
	level, ok := fromNative(perm)
	if !ok {
		return grid.Errorf(errcode.CatInvalidArgument, "unknown permission %d", perm)
	}
	if _, err := c.object(ctx, p, errcode.CatNoRowsFound); err != nil {
		return err
	}
	if err := c.principalExists(ctx, principal); err != nil {
		return err
	}
	if err := c.require(ctx, p, metadata.AccessOwn); err != nil {
		return err
	}
	if err := c.catalog().SetAccess(ctx, p, principal, level); err != nil {
		return storeErr(err, errcode.CatNoRowsFound, "%s", p)
	}
	c.audit(ctx, "acl.set", p, "principal=%s level=%s", principal, perm)
	return nil
}

func (c *fileSystemClient) principalExists(ctx context.Context, principal string) error {
	if principal == PublicGroup {
		return nil
	}
	if _, err := c.catalog().GetUser(ctx, principal); err == nil {
		return nil
	} else if !metadata.IsNotFound(err) {
		return storeErr(err, errcode.CatInvalidUser, "%s", principal)
	}
	if _, err := c.catalog().GetGroup(ctx, principal); err != nil {
		return storeErr(err, errcode.CatInvalidUser, "unknown user or group %s", principal)
	}
	return nil
}

func (c *fileSystemClient) Permission(ctx context.Context, p, principal string) (grid.NativePermission, error) {
	p, err := c.begin(ctx, p)
	if err != nil {
		return grid.PermNone, err
	}
	level, err := c.catalog().GetAccess(ctx, p, principal)
	if err != nil {
		return grid.PermNone, storeErr(err, errcode.CatNoRowsFound, "%s", p)
	}
	return toNative(level), nil
}

func (c *fileSystemClient) Permissions(ctx context.Context, p string) ([]grid.AccessEntry, error) {
	p, err := c.begin(ctx, p)
	if err != nil {
		return nil, err
	}
	entries, err := c.catalog().ListAccess(ctx, p)
	if err != nil {
		return nil, storeErr(err, errcode.CatNoRowsFound, "%s", p)
	}
	out := make([]grid.AccessEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, grid.AccessEntry{Principal: e.Principal, Permission: toNative(e.Level)})
	}
	return out, nil
}
