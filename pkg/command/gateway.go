package command

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sdu-escience/gridgate/internal/logger"
)

var (
	// ErrPanic marks a failure record written for an operation that panicked.
	ErrPanic = errors.New("command panicked")

	// ErrThrottled marks a command that gave up waiting for the rate limiter.
	ErrThrottled = errors.New("command throttled")

	// ErrAborted marks an operation whose goroutine exited through
	// runtime.Goexit before it returned.
	ErrAborted = errors.New("command aborted")
)

// Limiter admits commands. Wait blocks until the command may run or ctx is
// done.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Gateway instruments operations with access, performance and error records.
//
// A Gateway is safe for concurrent use. Each operation runs on the calling
// goroutine, optionally after waiting for a rate limiter.
type Gateway struct {
	sinks   Sinks
	metrics Metrics
	limiter Limiter
	now     func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMetrics attaches per-command metrics. A nil m is ignored.
func WithMetrics(m Metrics) Option {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithRateLimit makes every command wait for l before running. The wait
// happens after the access record is written and counts towards the
// command's elapsed time. A nil l is ignored.
func WithRateLimit(l Limiter) Option {
	return func(g *Gateway) {
		if l != nil {
			g.limiter = l
		}
	}
}

// WithClock overrides the wall clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway creates a gateway writing to sinks. Missing sinks fall back to
// LoggerSink.
func NewGateway(sinks Sinks, opts ...Option) *Gateway {
	g := &Gateway{
		sinks: sinks.withDefaults(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Sinks returns the sinks the gateway writes to.
func (g *Gateway) Sinks() Sinks {
	return g.sinks
}

// ============================================================================
// Call options
// ============================================================================

type callConfig struct {
	expected []func(error) bool
}

// CallOption configures a single wrapped call.
type CallOption func(*callConfig)

// Expect declares failures matching any of kinds (via errors.Is) as documented
// outcomes of the call. They are still recorded in the error log but are not
// reported as errors.
func Expect(kinds ...error) CallOption {
	return func(c *callConfig) {
		for _, kind := range kinds {
			c.expected = append(c.expected, func(err error) bool {
				return errors.Is(err, kind)
			})
		}
	}
}

// ExpectFunc declares failures for which match returns true as expected.
func ExpectFunc(match func(error) bool) CallOption {
	return func(c *callConfig) {
		if match != nil {
			c.expected = append(c.expected, match)
		}
	}
}

func (c *callConfig) isExpected(err error) bool {
	for _, match := range c.expected {
		if match(err) {
			return true
		}
	}
	return false
}

// ============================================================================
// Wrapping
// ============================================================================

// Wrap runs op as the command name invoked by id with args.
//
// The access record is written before op runs. The performance record is
// written on every exit path, including a panic in op, which is re-raised
// after recording. A failure writes exactly one error record. Sink failures
// are logged and never change the result of op.
func Wrap[T any](
	ctx context.Context,
	g *Gateway,
	id Identity,
	name string,
	args []any,
	op func(ctx context.Context) (T, error),
	opts ...CallOption,
) (result T, err error) {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	cmd := newContext(id, name, args, g.now())
	g.append(ctx, g.sinks.Access, cmd)

	start := time.Now()
	returned := false

	defer func() {
		elapsed := time.Since(start)

		if !returned {
			r := recover()
			if r == nil {
				// runtime.Goexit; let the exit proceed.
				aerr := fmt.Errorf("%w: %s", ErrAborted, name)
				g.finish(ctx, cmd, elapsed, aerr, debug.Stack(), false)
				return
			}
			perr := fmt.Errorf("%w: %s: %v", ErrPanic, name, r)
			g.finish(ctx, cmd, elapsed, perr, debug.Stack(), false)
			panic(r)
		}

		if err == nil {
			g.finish(ctx, cmd, elapsed, nil, nil, false)
			return
		}
		g.finish(ctx, cmd, elapsed, err, debug.Stack(), cfg.isExpected(err))
	}()

	if g.limiter != nil {
		if werr := g.limiter.Wait(ctx); werr != nil {
			returned = true
			return result, fmt.Errorf("%w: %s: %w", ErrThrottled, name, werr)
		}
	}

	result, err = op(ctx)
	returned = true
	return result, err
}

// Do is Wrap for operations without a result value.
func Do(
	ctx context.Context,
	g *Gateway,
	id Identity,
	name string,
	args []any,
	op func(ctx context.Context) error,
	opts ...CallOption,
) error {
	_, err := Wrap(ctx, g, id, name, args, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

func (g *Gateway) finish(ctx context.Context, cmd Context, elapsed time.Duration, err error, stack []byte, expected bool) {
	if err != nil {
		g.append(ctx, g.sinks.Error, newFailure(cmd, err, stack, expected))
		if expected {
			logger.Debug("%s by %s failed with documented outcome: %v", cmd.Name, cmd.Identity, err)
		} else {
			logger.Error("%s by %s failed: %v", cmd.Name, cmd.Identity, err)
		}
	}

	g.append(ctx, g.sinks.Performance, newPerf(cmd, elapsed, err != nil))

	if g.metrics != nil {
		g.metrics.ObserveCommand(cmd.Name, elapsed, err, expected)
	}
}

// append writes r to sink. Records are written even when ctx is canceled.
func (g *Gateway) append(ctx context.Context, sink Sink, r Record) {
	if err := sink.Append(context.WithoutCancel(ctx), r); err != nil {
		logger.Warn("Failed to append %s record for %s: %v", r.Kind(), commandName(r), err)
	}
}

func commandName(r Record) string {
	switch x := r.(type) {
	case Context:
		return x.Name
	case Perf:
		return x.Name
	case Failure:
		return x.Name
	}
	return "unknown"
}
