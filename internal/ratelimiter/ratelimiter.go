// Package ratelimiter throttles gateway commands with a token bucket.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// unlimited stands in for rate.Inf, which does not honour bursts.
const unlimited = 1_000_000_000

// RateLimiter admits commands at a sustained rate with bursts above it.
//
// Tokens are added at commandsPerSecond up to burst. Each command takes one
// token; Wait blocks for the next token while Allow rejects immediately.
//
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter admitting commandsPerSecond with bursts of up to
// burst commands. A zero rate admits everything. A zero burst defaults to
// the rate.
func New(commandsPerSecond, burst uint) *RateLimiter {
	if commandsPerSecond == 0 {
		commandsPerSecond = unlimited
		burst = unlimited
	}
	if burst == 0 {
		burst = commandsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(commandsPerSecond), int(burst)),
	}
}

// Wait blocks until a token is available or ctx is done. A wait that could
// not finish before the ctx deadline fails at once.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow takes a token if one is available.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Limit reports the sustained rate in commands per second.
func (r *RateLimiter) Limit() float64 {
	return float64(r.limiter.Limit())
}

// Burst reports the bucket capacity.
func (r *RateLimiter) Burst() int {
	return r.limiter.Burst()
}
