// Package command instruments every mediated grid call.
//
// Each call produces one access record when it starts, one performance record
// when it ends (on every exit path) and, when it fails, one failure record.
// The records are written to three independent sinks.
package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Redacted replaces secrets in recorded argument lists.
const Redacted = "***"

// Identity is the calling account of a command.
type Identity struct {
	Username string `json:"username"`
	Zone     string `json:"zone"`
}

func (i Identity) String() string {
	if i.Zone == "" {
		return i.Username
	}
	return i.Username + "#" + i.Zone
}

// Record is any value written to a sink.
type Record interface {
	// Kind names the log the record belongs to: access, performance or error.
	Kind() string
}

// Context describes one command invocation. It is the access-log record.
type Context struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"command"`
	Args      []any     `json:"args"`
	Identity  Identity  `json:"identity"`
	StartedAt time.Time `json:"started_at"`
}

func (c Context) Kind() string { return "access" }

// Perf is the performance-log record of a finished command.
type Perf struct {
	Context
	Elapsed       time.Duration `json:"-"`
	ElapsedMillis int64         `json:"elapsed_ms"`
	HadErrors     bool          `json:"had_errors"`
}

func (p Perf) Kind() string { return "performance" }

// Failure is the error-log record of a failed command.
type Failure struct {
	Context
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Trace     string `json:"trace"`
	// Expected is true when the failure is one of the outcomes the operation
	// documents (not found, already exists, ...).
	Expected bool `json:"expected"`
}

func (f Failure) Kind() string { return "error" }

func newContext(id Identity, name string, args []any, startedAt time.Time) Context {
	return Context{
		ID:        uuid.New(),
		Name:      name,
		Args:      slices.Clone(args),
		Identity:  id,
		StartedAt: startedAt,
	}
}

func newPerf(c Context, elapsed time.Duration, hadErrors bool) Perf {
	if elapsed < 0 {
		elapsed = 0
	}
	return Perf{
		Context:       c,
		Elapsed:       elapsed,
		ElapsedMillis: elapsed.Milliseconds(),
		HadErrors:     hadErrors,
	}
}

func newFailure(c Context, err error, stack []byte, expected bool) Failure {
	return Failure{
		Context:   c,
		ErrorType: ErrorTypeName(err),
		Message:   err.Error(),
		Trace:     Trace(err, stack),
		Expected:  expected,
	}
}

// ErrorTypeName returns the dynamic type name of err, skipping anonymous
// wrappers created by fmt.Errorf and errors.Join.
func ErrorTypeName(err error) string {
	if err == nil {
		return ""
	}
	for {
		name := fmt.Sprintf("%T", err)
		if !isAnonymousWrapper(name) {
			return name
		}
		next := errors.Unwrap(err)
		if joined, ok := err.(interface{ Unwrap() []error }); ok && len(joined.Unwrap()) > 0 {
			next = joined.Unwrap()[0]
		}
		if next == nil {
			return name
		}
		err = next
	}
}

func isAnonymousWrapper(typeName string) bool {
	return strings.HasPrefix(typeName, "*fmt.") || strings.HasPrefix(typeName, "*errors.")
}

// Trace renders the full cause chain of err followed by the goroutine stack.
func Trace(err error, stack []byte) string {
	var b strings.Builder
	writeChain(&b, err, 0)
	if len(stack) > 0 {
		b.WriteString("\n")
		b.Write(stack)
	}
	return b.String()
}

func writeChain(b *strings.Builder, err error, depth int) {
	for err != nil {
		if depth > 0 {
			b.WriteString("\n")
			b.WriteString(strings.Repeat("  ", depth-1))
			b.WriteString("caused by: ")
		}
		fmt.Fprintf(b, "%T: %s", err, err.Error())
		depth++

		switch x := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range x.Unwrap() {
				writeChain(b, e, depth)
			}
			return
		default:
			err = errors.Unwrap(err)
		}
	}
}
