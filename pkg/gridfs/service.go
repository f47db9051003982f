// Package gridfs is the operation surface applications use against the grid:
// file and collection access, permissions, checksums and administration.
//
// Every operation runs through a command.Gateway, so each call produces one
// access record, one performance record and, on failure, one error record.
// Native failures are translated at the call site into the closed set of
// domain errors in errors.go; operations document which of them are
// expected outcomes.
package gridfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/sdu-escience/gridgate/pkg/command"
	"github.com/sdu-escience/gridgate/pkg/session"
)

// service is the shared plumbing of FileService and AdminService.
type service struct {
	session *session.Session
	gateway *command.Gateway
}

func newService(s *session.Session, gw *command.Gateway) service {
	if gw == nil {
		gw = command.NewGateway(command.Sinks{})
	}
	return service{session: s, gateway: gw}
}

func (s service) identity() command.Identity {
	return command.Identity{Username: s.session.Username(), Zone: s.session.Zone()}
}

// call wraps op in the gateway after checking that the session is open.
func call[T any](ctx context.Context, s service, name string, args []any, op func(context.Context) (T, error), opts ...command.CallOption) (T, error) {
	return command.Wrap(ctx, s.gateway, s.identity(), name, args, func(ctx context.Context) (T, error) {
		if err := s.session.RequireOpen(); err != nil {
			var zero T
			return zero, err
		}
		return op(ctx)
	}, opts...)
}

// do is call for operations without a result.
func do(ctx context.Context, s service, name string, args []any, op func(context.Context) error, opts ...command.CallOption) error {
	_, err := call(ctx, s, name, args, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// requireName rejects empty paths and principal names.
func requireName(what, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrIllegalArgument, what)
	}
	return nil
}
