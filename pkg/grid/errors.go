package grid

import (
	"fmt"

	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
)

// Error is a failure reported by the grid, carrying its native status code.
type Error struct {
	Code    int32
	Message string
	Cause   error
}

// Errorf builds an *Error for a well-known code.
func Errorf(code errcode.Code, format string, args ...any) *Error {
	return &Error{Code: int32(code), Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	name := errcode.Code(e.Code).Name()
	if e.Cause != nil {
		return fmt.Sprintf("grid error %d %s: %s: %v", e.Code, name, e.Message, e.Cause)
	}
	return fmt.Sprintf("grid error %d %s: %s", e.Code, name, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NativeCode returns the raw status code.
func (e *Error) NativeCode() int32 {
	return e.Code
}

// Category classifies the code into its reserved block.
func (e *Error) Category() errcode.Category {
	return errcode.Classify(int64(e.Code))
}

// Wrap attaches cause to a new *Error.
func Wrap(code errcode.Code, cause error, format string, args ...any) *Error {
	e := Errorf(code, format, args...)
	e.Cause = cause
	return e
}
