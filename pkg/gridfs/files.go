package gridfs

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/sdu-escience/gridgate/pkg/command"
	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
	"github.com/sdu-escience/gridgate/pkg/session"
)

// FileService exposes file and collection operations of one session.
//
// Every exported method is one gateway command: it writes one access record
// before touching the grid, one performance record when it returns, and one
// failure record when it fails. Failures are always one of the package's
// error types (see errors.go); grid error codes never leak to callers.
//
// Expected outcomes, such as ErrNotFound from OpenForReading, are logged at
// DEBUG. Anything else is logged at ERROR.
//
// Thread Safety: safe for concurrent use when the session is.
type FileService struct {
	service
}

// NewFileService creates a FileService. A nil gateway logs records through
// the operational logger only.
func NewFileService(s *session.Session, gw *command.Gateway) *FileService {
	return &FileService{service: newService(s, gw)}
}

// ============================================================================
// Streams
// ============================================================================

// OpenForReading returns a stream over the data object at path.
//
// A missing object and an unreadable one both fail with ErrNotFound; the
// grid does not tell them apart on open.
//
// Parameters:
//   - ctx: Context for cancellation of the open call
//   - path: Absolute grid path of a data object
//
// Returns:
//   - io.ReadCloser: Stream over the content (must be closed by caller)
//   - error: ErrNotFound (expected), ErrIllegalArgument for an empty path,
//     or ErrGateway for anything the grid reports otherwise
//
// Example:
//
//	rc, err := files.OpenForReading(ctx, "/tempZone/home/rods/a.txt")
//	if errors.Is(err, gridfs.ErrNotFound) {
//	    return nil
//	}
//	defer rc.Close()
func (f *FileService) OpenForReading(ctx context.Context, path string) (io.ReadCloser, error) {
	return call(ctx, f.service, "openForReading", []any{path}, func(ctx context.Context) (io.ReadCloser, error) {
		if err := requireName("path", path); err != nil {
			return nil, err
		}
		files, err := f.session.Files()
		if err != nil {
			return nil, err
		}
		rc, err := files.Open(ctx, path)
		if err != nil {
			if isNotFound(err) || isAccessDenied(err) {
				return nil, ObjectNotFound(path, err)
			}
			return nil, wrapNative(err)
		}
		return rc, nil
	}, command.Expect(ErrNotFound))
}

// OpenForWriting returns a stream that creates or truncates the object at
// path. The content becomes visible when the caller closes the stream; a
// stream that is never closed leaves the previous content in place.
//
// Parameters:
//   - ctx: Context for cancellation of the create call
//   - path: Absolute grid path; its parent collection must exist
//
// Returns:
//   - io.WriteCloser: Stream accepting the new content
//   - error: ErrNotFound when the parent is missing, ErrAccessDenied when
//     the session may not write there (both expected), or ErrGateway
func (f *FileService) OpenForWriting(ctx context.Context, path string) (io.WriteCloser, error) {
	return call(ctx, f.service, "openForWriting", []any{path}, func(ctx context.Context) (io.WriteCloser, error) {
		if err := requireName("path", path); err != nil {
			return nil, err
		}
		files, err := f.session.Files()
		if err != nil {
			return nil, err
		}
		w, err := files.Create(ctx, path)
		switch {
		case err == nil:
			return w, nil
		case isAccessDenied(err):
			return nil, NewAccessDenied(path, err)
		case isNotFound(err), errcode.UserInputPathErr.Matches(err):
			return nil, ObjectNotFound(path, err)
		default:
			return nil, wrapNative(err)
		}
	}, command.Expect(ErrNotFound, ErrAccessDenied))
}

// Upload copies a local file to path.
func (f *FileService) Upload(ctx context.Context, localPath, path string, overwrite bool) error {
	return do(ctx, f.service, "upload", []any{localPath, path, overwrite}, func(ctx context.Context) error {
		if err := requireName("local path", localPath); err != nil {
			return err
		}
		if _, err := os.Stat(localPath); err != nil {
			return NewNotFound(KindEntity, localPath, err)
		}
		transfers, err := f.session.Transfers()
		if err != nil {
			return err
		}
		err = transfers.Put(ctx, localPath, path, overwrite)
		if errcode.OverwriteWithoutForce.Matches(err) {
			return ObjectAlreadyExists(path, err)
		}
		return translateObject(path, err)
	}, command.Expect(ErrNotFound, ErrAlreadyExists, ErrAccessDenied))
}

// Download copies the object at path into a local file.
func (f *FileService) Download(ctx context.Context, path, localPath string, overwrite bool) error {
	return do(ctx, f.service, "download", []any{path, localPath, overwrite}, func(ctx context.Context) error {
		if err := requireName("local path", localPath); err != nil {
			return err
		}
		transfers, err := f.session.Transfers()
		if err != nil {
			return err
		}
		err = transfers.Get(ctx, path, localPath, overwrite)
		switch {
		case errcode.OverwriteWithoutForce.Matches(err):
			return NewAlreadyExists(KindEntity, localPath, err)
		case isAccessDenied(err):
			return ObjectNotFound(path, err)
		}
		return translateObject(path, err)
	}, command.Expect(ErrNotFound, ErrAlreadyExists))
}

// ============================================================================
// Listing
// ============================================================================

// GetHomePath returns the account's home collection. A missing home is an
// environment defect and fails with ErrIllegalState.
func (f *FileService) GetHomePath(ctx context.Context) (string, error) {
	return call(ctx, f.service, "getHomePath", nil, func(ctx context.Context) (string, error) {
		home := f.session.HomePath()
		fs, err := f.session.FileSystem()
		if err != nil {
			return "", err
		}
		ok, err := fs.Exists(ctx, home)
		if err != nil {
			return "", wrapNative(err)
		}
		if !ok {
			return "", f.missingHome()
		}
		return home, nil
	})
}

func (f *FileService) missingHome() error {
	return fmt.Errorf("%w: expected home collection %s of account %s to exist; is the configured home directory correct for this user?",
		ErrIllegalState, f.session.HomePath(), f.session.Username())
}

// list returns the entries below path in the order the grid reports them.
func (f *FileService) list(ctx context.Context, path string) ([]grid.Entry, error) {
	if err := requireName("path", path); err != nil {
		return nil, err
	}
	colls, err := f.session.Collections()
	if err != nil {
		return nil, err
	}
	entries, err := colls.List(ctx, path)
	if err != nil {
		if isNotFound(err) || isAccessDenied(err) {
			return nil, ObjectNotFound(path, err)
		}
		return nil, wrapNative(err)
	}
	return entries, nil
}

func (f *FileService) listAtHome(ctx context.Context) ([]grid.Entry, error) {
	entries, err := f.list(ctx, f.session.HomePath())
	if errors.Is(err, ErrNotFound) {
		return nil, f.missingHome()
	}
	return entries, err
}

func names(entries []grid.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

// ListObjectNamesAtHome returns the child names of the session's home
// collection. A missing home is ErrIllegalState, not ErrNotFound.
func (f *FileService) ListObjectNamesAtHome(ctx context.Context) ([]string, error) {
	return call(ctx, f.service, "listObjectNamesAtHome", nil, func(ctx context.Context) ([]string, error) {
		entries, err := f.listAtHome(ctx)
		if err != nil {
			return nil, err
		}
		return names(entries), nil
	})
}

// ListObjectNamesAtPath returns the child names of the collection at path.
func (f *FileService) ListObjectNamesAtPath(ctx context.Context, path string) ([]string, error) {
	return call(ctx, f.service, "listObjectNamesAtPath", []any{path}, func(ctx context.Context) ([]string, error) {
		entries, err := f.list(ctx, path)
		if err != nil {
			return nil, err
		}
		return names(entries), nil
	}, command.Expect(ErrNotFound))
}

// ListObjectsAtHome is ListObjectNamesAtHome with full entries.
func (f *FileService) ListObjectsAtHome(ctx context.Context) ([]grid.Entry, error) {
	return call(ctx, f.service, "listObjectsAtHome", nil, f.listAtHome)
}

// ListObjectsAtPath returns the children of path with their type, size,
// owner and modification time, in the order the grid lists them.
func (f *FileService) ListObjectsAtPath(ctx context.Context, path string) ([]grid.Entry, error) {
	return call(ctx, f.service, "listObjectsAtPath", []any{path}, func(ctx context.Context) ([]grid.Entry, error) {
		return f.list(ctx, path)
	}, command.Expect(ErrNotFound))
}

// Stat describes the object at path.
func (f *FileService) Stat(ctx context.Context, path string) (grid.Entry, error) {
	return call(ctx, f.service, "stat", []any{path}, func(ctx context.Context) (grid.Entry, error) {
		return f.stat(ctx, path)
	}, command.Expect(ErrNotFound))
}

func (f *FileService) stat(ctx context.Context, path string) (grid.Entry, error) {
	if err := requireName("path", path); err != nil {
		return grid.Entry{}, err
	}
	fs, err := f.session.FileSystem()
	if err != nil {
		return grid.Entry{}, err
	}
	entry, err := fs.Stat(ctx, path)
	if err != nil {
		return grid.Entry{}, translateObject(path, err)
	}
	return entry, nil
}

// Exists reports whether an object exists at path. Absence is not an error.
func (f *FileService) Exists(ctx context.Context, path string) (bool, error) {
	return call(ctx, f.service, "exists", []any{path}, func(ctx context.Context) (bool, error) {
		return f.exists(ctx, path)
	})
}

func (f *FileService) exists(ctx context.Context, path string) (bool, error) {
	if err := requireName("path", path); err != nil {
		return false, err
	}
	fs, err := f.session.FileSystem()
	if err != nil {
		return false, err
	}
	ok, err := fs.Exists(ctx, path)
	if err != nil {
		return false, wrapNative(err)
	}
	return ok, nil
}

// ============================================================================
// Create / delete
// ============================================================================

// Delete removes the data object or empty collection at path.
//
// The existence check and the removal are not atomic; a concurrent deleter
// can still make the removal fail with ErrNotFound.
//
// Parameters:
//   - ctx: Context for cancellation
//   - path: Absolute grid path of a data object or collection
//
// Returns:
//   - bool: true when something was removed, false when path is a
//     collection that still has children
//   - error: ErrNotFound (expected) when nothing exists at path, or
//     ErrGateway
func (f *FileService) Delete(ctx context.Context, path string) (bool, error) {
	return call(ctx, f.service, "delete", []any{path}, func(ctx context.Context) (bool, error) {
		entry, err := f.stat(ctx, path)
		if err != nil {
			return false, err
		}

		if entry.IsCollection() {
			colls, err := f.session.Collections()
			if err != nil {
				return false, err
			}
			err = colls.Remove(ctx, path, false)
			if isCollectionNotEmpty(err) {
				return false, nil
			}
			if err != nil {
				return false, translateObject(path, err)
			}
			return true, nil
		}

		objs, err := f.session.DataObjects()
		if err != nil {
			return false, err
		}
		if err := objs.Remove(ctx, path); err != nil {
			return false, translateObject(path, err)
		}
		return true, nil
	}, command.Expect(ErrNotFound))
}

// CreateDirectory creates the collection at path.
//
// Parameters:
//   - ctx: Context for cancellation
//   - path: Absolute grid path of the new collection
//   - recursive: Create missing parents as well
//
// Returns:
//   - error: ErrIllegalArgument when a parent is missing and recursive is
//     false, or ErrGateway; an existing collection at path is not an
//     error
func (f *FileService) CreateDirectory(ctx context.Context, path string, recursive bool) error {
	return do(ctx, f.service, "createDirectory", []any{path, recursive}, func(ctx context.Context) error {
		if err := requireName("path", path); err != nil {
			return err
		}
		colls, err := f.session.Collections()
		if err != nil {
			return err
		}
		err = colls.Create(ctx, path, recursive)
		if err != nil && !recursive && errcode.UserFileDoesNotExist.Matches(err) {
			return fmt.Errorf("%w: could not find parent of %s. Missing recursive flag?", ErrIllegalArgument, path)
		}
		return wrapNative(err)
	})
}

// DeleteDirectory force-removes the collection at path and everything below
// it. Targets that are not collections fail with ErrIllegalState.
func (f *FileService) DeleteDirectory(ctx context.Context, path string) error {
	return do(ctx, f.service, "deleteDirectory", []any{path}, func(ctx context.Context) error {
		entry, err := f.stat(ctx, path)
		if err != nil {
			return err
		}
		if !entry.IsCollection() {
			return fmt.Errorf("%w: %s is not a directory", ErrIllegalState, path)
		}
		colls, err := f.session.Collections()
		if err != nil {
			return err
		}
		if err := colls.Remove(ctx, path, true); err != nil {
			if isNotFound(err) {
				return ObjectNotFound(path, err)
			}
			return wrapNative(err)
		}
		return nil
	}, command.Expect(ErrNotFound))
}

// ============================================================================
// Permissions
// ============================================================================

// GrantPermissionsOnObject gives principal perm on path, replacing whatever
// principal held before.
//
// The object and the principal are checked first, so a missing one fails
// with an ErrNotFound naming the right kind (object or user).
//
// Parameters:
//   - ctx: Context for cancellation
//   - path: Absolute grid path of a data object or collection
//   - perm: Read, ReadWrite or Own
//   - principal: User or group name in the session's zone
//
// Returns:
//   - error: ErrNotFound (expected), ErrIllegalArgument for an invalid
//     perm, ErrAccessDenied when the session does not own path, or
//     ErrGateway
func (f *FileService) GrantPermissionsOnObject(ctx context.Context, path string, perm Permission, principal string) error {
	return do(ctx, f.service, "grantPermissionsOnObject", []any{path, perm, principal}, func(ctx context.Context) error {
		if !perm.Valid() {
			return fmt.Errorf("%w: unknown permission %s", ErrIllegalArgument, perm)
		}
		return f.setPermission(ctx, path, principal, perm.Native())
	}, command.Expect(ErrNotFound))
}

// RevokeAllPermissionsOnObject removes every permission principal has on
// path.
func (f *FileService) RevokeAllPermissionsOnObject(ctx context.Context, path, principal string) error {
	return do(ctx, f.service, "revokeAllPermissionsOnObject", []any{path, principal}, func(ctx context.Context) error {
		return f.setPermission(ctx, path, principal, grid.PermNone)
	}, command.Expect(ErrNotFound))
}

func (f *FileService) setPermission(ctx context.Context, path, principal string, perm grid.NativePermission) error {
	if err := f.requireObject(ctx, path); err != nil {
		return err
	}
	if err := f.requirePrincipal(ctx, principal); err != nil {
		return err
	}
	fs, err := f.session.FileSystem()
	if err != nil {
		return err
	}
	return translateObject(path, fs.SetPermission(ctx, path, principal, perm))
}

// GetPermissionsOnObject returns the session user's permission on path, or
// nil when none is granted.
func (f *FileService) GetPermissionsOnObject(ctx context.Context, path string) (*Permission, error) {
	return call(ctx, f.service, "getPermissionsOnObject", []any{path}, func(ctx context.Context) (*Permission, error) {
		p, err := f.permission(ctx, path, f.session.Username())
		var nf *NotFoundError
		if errors.As(err, &nf) && nf.Kind == KindUser {
			return nil, fmt.Errorf("%w: cannot find authenticated user %s", ErrIllegalState, f.session.Username())
		}
		return p, err
	}, command.Expect(ErrNotFound))
}

// GetPermissionsOnObjectFor returns principal's permission on path, or nil
// when none is granted.
func (f *FileService) GetPermissionsOnObjectFor(ctx context.Context, path, principal string) (*Permission, error) {
	return call(ctx, f.service, "getPermissionsOnObject", []any{path, principal}, func(ctx context.Context) (*Permission, error) {
		return f.permission(ctx, path, principal)
	}, command.Expect(ErrNotFound))
}

func (f *FileService) permission(ctx context.Context, path, principal string) (*Permission, error) {
	if err := f.requireObject(ctx, path); err != nil {
		return nil, err
	}
	if err := f.requirePrincipal(ctx, principal); err != nil {
		return nil, err
	}
	fs, err := f.session.FileSystem()
	if err != nil {
		return nil, err
	}
	native, err := fs.Permission(ctx, path, principal)
	if err != nil {
		return nil, translateObject(path, err)
	}
	return permissionFromNative(native), nil
}

func (f *FileService) requireObject(ctx context.Context, path string) error {
	ok, err := f.exists(ctx, path)
	if err != nil {
		return err
	}
	if !ok {
		return ObjectNotFound(path, nil)
	}
	return nil
}

// requirePrincipal accepts users and groups. A principal that is neither is
// reported as a missing user.
func (f *FileService) requirePrincipal(ctx context.Context, principal string) error {
	if err := requireName("principal", principal); err != nil {
		return err
	}
	users, err := f.session.Users()
	if err != nil {
		return err
	}
	_, err = users.Find(ctx, principal)
	if err == nil {
		return nil
	}
	if !isUserNotFound(err) {
		return wrapNative(err)
	}

	groups, gerr := f.session.Groups()
	if gerr != nil {
		return gerr
	}
	if _, gerr := groups.Find(ctx, principal); gerr == nil {
		return nil
	} else if !isGroupNotFound(gerr) {
		return wrapNative(gerr)
	}
	return UserNotFound(principal, err)
}

// ============================================================================
// Checksums
// ============================================================================

// ComputeChecksum asks the grid for the checksum of path and returns it
// hex-encoded. The algorithm is chosen by the grid.
func (f *FileService) ComputeChecksum(ctx context.Context, path string) (string, error) {
	return call(ctx, f.service, "computeChecksum", []any{path}, func(ctx context.Context) (string, error) {
		sum, err := f.checksum(ctx, path)
		if err != nil {
			return "", err
		}
		return sum.Hex(), nil
	}, command.Expect(ErrNotFound))
}

func (f *FileService) checksum(ctx context.Context, path string) (grid.Checksum, error) {
	if err := requireName("path", path); err != nil {
		return grid.Checksum{}, err
	}
	sums, err := f.session.Checksums()
	if err != nil {
		return grid.Checksum{}, err
	}
	sum, err := sums.Compute(ctx, path)
	if err != nil {
		if isNotFound(err) {
			return grid.Checksum{}, ObjectNotFound(path, err)
		}
		return grid.Checksum{}, wrapNative(err)
	}
	return sum, nil
}

// VerifyChecksumOfLocalFile reports whether the local file has the same
// checksum as the object at path. The local digest uses the algorithm the
// grid reports.
func (f *FileService) VerifyChecksumOfLocalFile(ctx context.Context, localPath, path string) (bool, error) {
	return call(ctx, f.service, "verifyChecksumOfLocalFile", []any{localPath, path}, func(ctx context.Context) (bool, error) {
		file, err := os.Open(localPath)
		if err != nil {
			return false, NewNotFound(KindEntity, localPath, err)
		}
		defer file.Close()

		remote, err := f.checksum(ctx, path)
		if err != nil {
			return false, err
		}

		h, err := hashFor(remote.Algorithm)
		if err != nil {
			return false, err
		}
		if _, err := io.Copy(h, file); err != nil {
			return false, fmt.Errorf("failed to read local file %s: %w", localPath, err)
		}
		return bytes.Equal(h.Sum(nil), remote.Value), nil
	}, command.Expect(ErrNotFound))
}

func hashFor(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "sha2", "sha256", "SHA-256":
		return sha256.New(), nil
	case "md5", "MD5":
		return md5.New(), nil
	}
	return nil, fmt.Errorf("%w: unsupported checksum algorithm %q", ErrIllegalState, algorithm)
}
