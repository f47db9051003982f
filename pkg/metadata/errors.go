package metadata

import "errors"

// StoreError represents a domain error from catalog operations.
//
// These are business logic errors (object not found, duplicate user, etc.)
// as opposed to infrastructure errors (disk failure, closed database).
//
// The grid engine translates StoreError codes into native grid status codes.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Key identifies the record the error relates to (path, user name, ...)
	Key string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key != "" {
		return e.Message + ": " + e.Key
	}
	return e.Message
}

// Is matches any *StoreError with the same code, so callers can write
// errors.Is(err, metadata.NotFound).
func (e *StoreError) Is(target error) bool {
	var other *StoreError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// ErrorCode represents the category of a catalog error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested record doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a record with the same key already exists
	ErrAlreadyExists

	// ErrNotEmpty indicates a collection or group still has children
	ErrNotEmpty

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: relative path, empty name
	ErrInvalidArgument

	// ErrIOError indicates the underlying storage failed
	ErrIOError
)

// Sentinels for errors.Is.
var (
	NotFound        = &StoreError{Code: ErrNotFound, Message: "not found"}
	AlreadyExists   = &StoreError{Code: ErrAlreadyExists, Message: "already exists"}
	NotEmpty        = &StoreError{Code: ErrNotEmpty, Message: "not empty"}
	InvalidArgument = &StoreError{Code: ErrInvalidArgument, Message: "invalid argument"}
)

// NewNotFoundError creates a not found error for key.
func NewNotFoundError(kind, key string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: kind + " not found", Key: key}
}

// NewAlreadyExistsError creates a duplicate error for key.
func NewAlreadyExistsError(kind, key string) *StoreError {
	return &StoreError{Code: ErrAlreadyExists, Message: kind + " already exists", Key: key}
}

// NewNotEmptyError creates a not empty error for key.
func NewNotEmptyError(kind, key string) *StoreError {
	return &StoreError{Code: ErrNotEmpty, Message: kind + " is not empty", Key: key}
}

// NewInvalidArgumentError creates an invalid argument error.
func NewInvalidArgumentError(message, key string) *StoreError {
	return &StoreError{Code: ErrInvalidArgument, Message: message, Key: key}
}

// IsNotFound reports whether err is a catalog not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, NotFound)
}

// IsAlreadyExists reports whether err is a catalog duplicate error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, AlreadyExists)
}

// IsNotEmpty reports whether err is a catalog not empty error.
func IsNotEmpty(err error) bool {
	return errors.Is(err, NotEmpty)
}
