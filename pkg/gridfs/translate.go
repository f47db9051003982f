package gridfs

import (
	"context"
	"errors"

	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
)

// Translation from native failures happens at each call site: every
// operation decides which native codes carry domain meaning for it and hands
// the rest to wrapNative.

func isNotFound(err error) bool {
	return errcode.MatchesAny(err,
		errcode.UserFileDoesNotExist,
		errcode.CatUnknownFile,
		errcode.CatUnknownCollection,
		errcode.CatNoRowsFound,
	)
}

func isDuplicate(err error) bool {
	return errcode.CatalogAlreadyHasItem.Matches(err)
}

func isAccessDenied(err error) bool {
	return errcode.CatNoAccessPermission.Matches(err)
}

func isCollectionNotEmpty(err error) bool {
	return errcode.CatCollectionNotEmpty.Matches(err)
}

func isUserNotFound(err error) bool {
	return errcode.CatInvalidUser.Matches(err)
}

func isGroupNotFound(err error) bool {
	return errcode.CatInvalidGroup.Matches(err)
}

func isNotMember(err error) bool {
	return errcode.CatUserNotInGroup.Matches(err)
}

// isDomain reports whether err already belongs to the domain taxonomy or
// is caller misuse, and must pass through untouched.
func isDomain(err error) bool {
	for _, kind := range []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrAccessDenied,
		ErrCollectionNotEmpty,
		ErrGateway,
		ErrIllegalState,
		ErrIllegalArgument,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// wrapNative turns an unclassified failure into a *GatewayError keeping the
// native code and message. Domain errors and context errors pass through.
func wrapNative(err error) error {
	if err == nil || isDomain(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	ge := &GatewayError{Category: errcode.Unknown, Message: err.Error(), Cause: err}
	if code, ok := errcode.NativeCode(err); ok {
		ge.Code = code
		ge.Category = errcode.Classify(int64(code))
	}
	var native *grid.Error
	if errors.As(err, &native) {
		ge.Message = native.Message
	}
	return ge
}

// translateObject maps the failures that mean the same thing for every
// object-level operation.
func translateObject(path string, err error) error {
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return ObjectNotFound(path, err)
	case isAccessDenied(err):
		return NewAccessDenied(path, err)
	case isDuplicate(err):
		return ObjectAlreadyExists(path, err)
	case isCollectionNotEmpty(err):
		return NewCollectionNotEmpty(path, err)
	default:
		return wrapNative(err)
	}
}
