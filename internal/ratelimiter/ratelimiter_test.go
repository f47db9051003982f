package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		rate      uint
		burst     uint
		wantBurst int
	}{
		{name: "explicit burst", rate: 10, burst: 20, wantBurst: 20},
		{name: "burst defaults to rate", rate: 5, burst: 0, wantBurst: 5},
		{name: "zero rate is unlimited", rate: 0, burst: 3, wantBurst: unlimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.rate, tt.burst)
			assert.Equal(t, tt.wantBurst, l.Burst())
		})
	}
}

func TestAllow_EnforcesBurst(t *testing.T) {
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "command %d is within the burst", i)
	}
	assert.False(t, l.Allow())
}

func TestAllow_Unlimited(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 10_000; i++ {
		require.True(t, l.Allow())
	}
}

func TestWait_BlocksForNextToken(t *testing.T) {
	l := New(20, 1)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWait_HonoursCancellation(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWait_FailsFastPastDeadline(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.Error(t, l.Wait(ctx))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
