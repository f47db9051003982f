package gridfs

import (
	"errors"
	"fmt"

	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
	"github.com/sdu-escience/gridgate/pkg/session"
)

// Kind names the sort of entity a domain error is about.
type Kind string

const (
	KindEntity    Kind = "Entity"
	KindObject    Kind = "Object"
	KindUser      Kind = "User"
	KindUserGroup Kind = "UserGroup"
)

// Sentinels for errors.Is. Every domain error type matches exactly one.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrAccessDenied       = errors.New("access denied")
	ErrCollectionNotEmpty = errors.New("collection not empty")
	ErrGateway            = errors.New("grid gateway failure")

	// ErrIllegalState marks environment defects and use of a closed session.
	ErrIllegalState = session.ErrIllegalState

	// ErrIllegalArgument marks caller misuse.
	ErrIllegalArgument = errors.New("illegal argument")
)

// ============================================================================
// Not found / already exists
// ============================================================================

// NotFoundError reports that an entity does not exist, or is not visible to
// the caller.
type NotFoundError struct {
	Kind  Kind
	Name  string
	Cause error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) Unwrap() error        { return e.Cause }

func NewNotFound(kind Kind, name string, cause error) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name, Cause: cause}
}

func ObjectNotFound(path string, cause error) *NotFoundError {
	return NewNotFound(KindObject, path, cause)
}

func UserNotFound(name string, cause error) *NotFoundError {
	return NewNotFound(KindUser, name, cause)
}

func GroupNotFound(name string, cause error) *NotFoundError {
	return NewNotFound(KindUserGroup, name, cause)
}

// AlreadyExistsError reports that an entity is already present.
type AlreadyExistsError struct {
	Kind  Kind
	Name  string
	Cause error
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.Name)
}

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }
func (e *AlreadyExistsError) Unwrap() error        { return e.Cause }

func NewAlreadyExists(kind Kind, name string, cause error) *AlreadyExistsError {
	return &AlreadyExistsError{Kind: kind, Name: name, Cause: cause}
}

func ObjectAlreadyExists(path string, cause error) *AlreadyExistsError {
	return NewAlreadyExists(KindObject, path, cause)
}

func UserAlreadyExists(name string, cause error) *AlreadyExistsError {
	return NewAlreadyExists(KindUser, name, cause)
}

func GroupAlreadyExists(name string, cause error) *AlreadyExistsError {
	return NewAlreadyExists(KindUserGroup, name, cause)
}

// ============================================================================
// Access / collections
// ============================================================================

// AccessDeniedError is raised only when the grid reports its specific
// no-access code.
type AccessDeniedError struct {
	Path  string
	Cause error
}

func (e *AccessDeniedError) Error() string {
	return "access denied: " + e.Path
}

func (e *AccessDeniedError) Is(target error) bool { return target == ErrAccessDenied }
func (e *AccessDeniedError) Unwrap() error        { return e.Cause }

func NewAccessDenied(path string, cause error) *AccessDeniedError {
	return &AccessDeniedError{Path: path, Cause: cause}
}

// CollectionNotEmptyError reports a removal blocked by remaining children or
// members.
type CollectionNotEmptyError struct {
	Name  string
	Cause error
}

func (e *CollectionNotEmptyError) Error() string {
	return "collection not empty: " + e.Name
}

func (e *CollectionNotEmptyError) Is(target error) bool { return target == ErrCollectionNotEmpty }
func (e *CollectionNotEmptyError) Unwrap() error        { return e.Cause }

func NewCollectionNotEmpty(name string, cause error) *CollectionNotEmptyError {
	return &CollectionNotEmptyError{Name: name, Cause: cause}
}

// ============================================================================
// Generic gateway failure
// ============================================================================

// GatewayError wraps any native failure that has no domain meaning at the
// call site. Code is 0 when the cause carried no native code.
type GatewayError struct {
	Code     int32
	Category errcode.Category
	Message  string
	Cause    error
}

func (e *GatewayError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("grid failure (%s): %s", e.Category, e.Message)
	}
	return fmt.Sprintf("grid failure %d (%s %s): %s", e.Code, e.Category, errcode.Code(e.Code).Name(), e.Message)
}

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }
func (e *GatewayError) Unwrap() error        { return e.Cause }
