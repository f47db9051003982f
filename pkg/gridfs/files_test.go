package gridfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/command"
	"github.com/sdu-escience/gridgate/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDirectory_EndToEnd(t *testing.T) {
	e := newEnv(t)
	files, _ := e.admin(t)
	ctx := context.Background()
	docs := "/tempZone/home/alice/docs"

	err := files.CreateDirectory(ctx, docs, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalArgument)
	assert.Contains(t, err.Error(), "Missing recursive flag?")

	require.NoError(t, files.CreateDirectory(ctx, docs, true))

	ok, err := files.Exists(ctx, docs)
	require.NoError(t, err)
	assert.True(t, ok)

	names, err := files.ListObjectNamesAtPath(ctx, "/tempZone/home/alice")
	require.NoError(t, err)
	assert.Contains(t, names, "docs")
}

func TestOpenForReading(t *testing.T) {
	e := newEnv(t)
	alice := e.alice(t)
	ctx := context.Background()
	p := "/tempZone/home/alice/data/hello.txt"

	_, err := alice.OpenForReading(ctx, p)
	require.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindObject, nf.Kind)
	assert.Equal(t, p, nf.Name)
	assert.True(t, e.lastFailure(t).Expected)

	require.NoError(t, alice.CreateDirectory(ctx, "/tempZone/home/alice/data", true))
	writeFile(t, alice, p, []byte("hello, grid"))

	rc, err := alice.OpenForReading(ctx, p)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello, grid", string(got))
}

func TestOpenForReading_UnreadableIsNotFound(t *testing.T) {
	e := newEnv(t)
	admin, _ := e.admin(t)
	alice := e.alice(t)
	ctx := context.Background()

	writeFile(t, admin, "/tempZone/home/rods/private", []byte("x"))
	_, err := alice.OpenForReading(ctx, "/tempZone/home/rods/private")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenForWriting(t *testing.T) {
	e := newEnv(t)
	alice := e.alice(t)
	ctx := context.Background()

	_, err := alice.OpenForWriting(ctx, "/tempZone/home/rods/intrusion")
	require.ErrorIs(t, err, ErrAccessDenied)
	var denied *AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "/tempZone/home/rods/intrusion", denied.Path)
	assert.True(t, e.lastFailure(t).Expected)

	_, err = alice.OpenForWriting(ctx, "/tempZone/home/alice/missing/file")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = alice.OpenForWriting(ctx, "relative")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = alice.OpenForWriting(ctx, "")
	assert.ErrorIs(t, err, ErrIllegalArgument)
	assert.False(t, e.lastFailure(t).Expected)
}

func TestListing(t *testing.T) {
	e := newEnv(t)
	alice := e.alice(t)
	ctx := context.Background()

	names, err := alice.ListObjectNamesAtHome(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, alice.CreateDirectory(ctx, "/tempZone/home/alice/b", false))
	writeFile(t, alice, "/tempZone/home/alice/a.txt", []byte("abc"))

	names, err = alice.ListObjectNamesAtHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b"}, names)

	entries, err := alice.ListObjectsAtHome(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].Size)
	assert.False(t, entries[0].IsCollection())
	assert.True(t, entries[1].IsCollection())

	entries, err = alice.ListObjectsAtPath(ctx, "/tempZone/home/alice/b")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = alice.ListObjectsAtPath(ctx, "/tempZone/home/alice/none")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = alice.ListObjectNamesAtPath(ctx, "/tempZone/home/alice/none")
	assert.ErrorIs(t, err, ErrNotFound)

	home, err := alice.GetHomePath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/tempZone/home/alice", home)
}

func TestMissingHomeIsIllegalState(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acct := account(adminUser, adminPass)
	acct.HomeDirectory = "/tempZone/home/nowhere"
	files := NewFileService(e.open(t, acct), e.gw)

	_, err := files.ListObjectNamesAtHome(ctx)
	assert.ErrorIs(t, err, ErrIllegalState)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = files.ListObjectsAtHome(ctx)
	assert.ErrorIs(t, err, ErrIllegalState)

	_, err = files.GetHomePath(ctx)
	assert.ErrorIs(t, err, ErrIllegalState)
	assert.False(t, e.lastFailure(t).Expected)
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	alice := e.alice(t)
	ctx := context.Background()
	p := "/tempZone/home/alice/gone.txt"

	writeFile(t, alice, p, []byte("bye"))

	ok, err := alice.Delete(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = alice.Delete(ctx, p)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, ok)

	require.NoError(t, alice.CreateDirectory(ctx, "/tempZone/home/alice/full", false))
	writeFile(t, alice, "/tempZone/home/alice/full/x", []byte("x"))

	ok, err = alice.Delete(ctx, "/tempZone/home/alice/full")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = alice.Delete(ctx, "/tempZone/home/alice/full/x")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = alice.Delete(ctx, "/tempZone/home/alice/full")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteDirectory(t *testing.T) {
	e := newEnv(t)
	alice := e.alice(t)
	ctx := context.Background()

	require.NoError(t, alice.CreateDirectory(ctx, "/tempZone/home/alice/tree/a/b", true))
	writeFile(t, alice, "/tempZone/home/alice/tree/a/b/leaf", []byte("leaf"))
	writeFile(t, alice, "/tempZone/home/alice/file", []byte("file"))

	err := alice.DeleteDirectory(ctx, "/tempZone/home/alice/file")
	assert.ErrorIs(t, err, ErrIllegalState)

	err = alice.DeleteDirectory(ctx, "/tempZone/home/alice/none")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, alice.DeleteDirectory(ctx, "/tempZone/home/alice/tree"))
	ok, err := alice.Exists(ctx, "/tempZone/home/alice/tree")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissions(t *testing.T) {
	e := newEnv(t)
	admin, _ := e.admin(t)
	alice := e.alice(t)
	ctx := context.Background()
	p := "/tempZone/home/rods/shared.txt"

	writeFile(t, admin, p, []byte("shared"))

	require.NoError(t, admin.GrantPermissionsOnObject(ctx, p, Own, "alice"))
	perm, err := admin.GetPermissionsOnObjectFor(ctx, p, "alice")
	require.NoError(t, err)
	require.NotNil(t, perm)
	assert.Equal(t, Own, *perm)

	own, err := alice.GetPermissionsOnObject(ctx, p)
	require.NoError(t, err)
	require.NotNil(t, own)
	assert.Equal(t, Own, *own)

	require.NoError(t, admin.RevokeAllPermissionsOnObject(ctx, p, "alice"))
	perm, err = admin.GetPermissionsOnObjectFor(ctx, p, "alice")
	require.NoError(t, err)
	assert.Nil(t, perm)
}

func TestPermissions_NotFound(t *testing.T) {
	e := newEnv(t)
	admin, _ := e.admin(t)
	ctx := context.Background()
	p := "/tempZone/home/rods/shared.txt"
	writeFile(t, admin, p, []byte("shared"))

	err := admin.GrantPermissionsOnObject(ctx, "/tempZone/home/rods/none", Read, "rods")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindObject, nf.Kind)

	err = admin.GrantPermissionsOnObject(ctx, p, Read, "nobody")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindUser, nf.Kind)
	assert.Equal(t, "nobody", nf.Name)
	assert.True(t, e.lastFailure(t).Expected)

	_, err = admin.GetPermissionsOnObjectFor(ctx, p, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	err = admin.RevokeAllPermissionsOnObject(ctx, "/tempZone/home/rods/none", "rods")
	assert.ErrorIs(t, err, ErrNotFound)

	err = admin.GrantPermissionsOnObject(ctx, p, Permission(42), "rods")
	assert.ErrorIs(t, err, ErrIllegalArgument)
}

func TestPermissions_Group(t *testing.T) {
	e := newEnv(t)
	files, admin := e.admin(t)
	ctx := context.Background()
	p := "/tempZone/home/rods/lab.txt"
	writeFile(t, files, p, []byte("lab"))

	require.NoError(t, admin.CreateGroup(ctx, "lab"))
	require.NoError(t, files.GrantPermissionsOnObject(ctx, p, ReadWrite, "lab"))

	perm, err := files.GetPermissionsOnObjectFor(ctx, p, "lab")
	require.NoError(t, err)
	require.NotNil(t, perm)
	assert.Equal(t, ReadWrite, *perm)
}

func TestChecksums(t *testing.T) {
	e := newEnv(t)
	alice := e.alice(t)
	ctx := context.Background()
	p := "/tempZone/home/alice/sum.bin"
	data := []byte("checksum me")

	writeFile(t, alice, p, data)

	sum, err := alice.ComputeChecksum(ctx, p)
	require.NoError(t, err)
	want := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(want[:]), sum)

	_, err = alice.ComputeChecksum(ctx, "/tempZone/home/alice/none")
	assert.ErrorIs(t, err, ErrNotFound)

	dir := t.TempDir()
	same := filepath.Join(dir, "same.bin")
	other := filepath.Join(dir, "other.bin")
	require.NoError(t, os.WriteFile(same, data, 0o644))
	require.NoError(t, os.WriteFile(other, []byte("different"), 0o644))

	ok, err := alice.VerifyChecksumOfLocalFile(ctx, same, p)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = alice.VerifyChecksumOfLocalFile(ctx, other, p)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = alice.VerifyChecksumOfLocalFile(ctx, filepath.Join(dir, "missing"), p)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadDownload(t *testing.T) {
	e := newEnv(t)
	alice := e.alice(t)
	ctx := context.Background()
	dir := t.TempDir()
	local := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(local, []byte("payload"), 0o644))
	remote := "/tempZone/home/alice/in.txt"

	require.NoError(t, alice.Upload(ctx, local, remote, false))
	assert.ErrorIs(t, alice.Upload(ctx, local, remote, false), ErrAlreadyExists)
	require.NoError(t, alice.Upload(ctx, local, remote, true))
	assert.ErrorIs(t, alice.Upload(ctx, filepath.Join(dir, "none"), remote, true), ErrNotFound)

	out := filepath.Join(dir, "out.txt")
	require.NoError(t, alice.Download(ctx, remote, out, false))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	assert.ErrorIs(t, alice.Download(ctx, remote, out, false), ErrAlreadyExists)
	assert.ErrorIs(t, alice.Download(ctx, "/tempZone/home/alice/none", filepath.Join(dir, "x"), false), ErrNotFound)
}

func TestStat(t *testing.T) {
	e := newEnv(t)
	alice := e.alice(t)
	ctx := context.Background()

	writeFile(t, alice, "/tempZone/home/alice/s", []byte("12345"))
	entry, err := alice.Stat(ctx, "/tempZone/home/alice/s")
	require.NoError(t, err)
	assert.Equal(t, "s", entry.Name)
	assert.Equal(t, int64(5), entry.Size)
	assert.Equal(t, "alice", entry.Owner)

	_, err = alice.Stat(ctx, "/tempZone/home/alice/none")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClosedSessionFailsFast(t *testing.T) {
	e := newEnv(t)
	s := e.open(t, account(adminUser, adminPass))
	files := NewFileService(s, e.gw)
	require.NoError(t, s.Close())

	before := e.access.Len()
	_, err := files.Exists(context.Background(), "/tempZone")
	assert.ErrorIs(t, err, ErrIllegalState)
	assert.ErrorIs(t, err, session.ErrClosed)

	assert.Equal(t, before+1, e.access.Len())
	failure := e.lastFailure(t)
	assert.Equal(t, "exists", failure.Name)
	assert.False(t, failure.Expected)
}

func TestEveryCallIsRecordedOnce(t *testing.T) {
	e := newEnv(t)
	files, _ := e.admin(t)
	ctx := context.Background()

	_, err := files.Exists(ctx, "/tempZone")
	require.NoError(t, err)
	_, err = files.OpenForReading(ctx, "/tempZone/nothing")
	require.Error(t, err)

	require.Equal(t, 2, e.access.Len())
	require.Equal(t, 2, e.perf.Len())
	require.Len(t, e.failures(), 1)

	perfs := e.perf.Records()
	ok := perfs[0].(command.Perf)
	failed := perfs[1].(command.Perf)
	assert.False(t, ok.HadErrors)
	assert.True(t, failed.HadErrors)
	assert.GreaterOrEqual(t, failed.ElapsedMillis, int64(0))

	access := e.access.Records()[1].(command.Context)
	assert.Equal(t, "openForReading", access.Name)
	assert.Equal(t, []any{"/tempZone/nothing"}, access.Args)
	assert.Equal(t, command.Identity{Username: adminUser, Zone: zone}, access.Identity)

	failure := e.failures()[0]
	assert.Equal(t, access.ID, failure.ID)
	assert.Equal(t, "*gridfs.NotFoundError", failure.ErrorType)
	assert.True(t, failure.Expected)
	assert.True(t, errors.Is(err, ErrNotFound))
}
