package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUpToMax(t *testing.T) {
	r := NewRateLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Acquire(ctx))
	}
	assert.Equal(t, 3, r.Pending())
}

func TestRateLimiterSleepsUntilOldestExpires(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var slept time.Duration
	r := NewRateLimiter(2, time.Minute)
	r.now = func() time.Time { return clock }
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		clock = clock.Add(d)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, r.Acquire(ctx))
	clock = clock.Add(10 * time.Second)
	require.NoError(t, r.Acquire(ctx))

	// Window is full; the third acquire waits until the first stamp ages out.
	require.NoError(t, r.Acquire(ctx))
	assert.Equal(t, 50*time.Second, slept)
	assert.Equal(t, 2, r.Pending())
}

func TestRateLimiterWindowSlides(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRateLimiter(2, time.Minute)
	r.now = func() time.Time { return clock }

	ctx := context.Background()
	require.NoError(t, r.Acquire(ctx))
	require.NoError(t, r.Acquire(ctx))
	assert.Equal(t, 2, r.Pending())

	clock = clock.Add(61 * time.Second)
	assert.Zero(t, r.Pending())
	require.NoError(t, r.Acquire(ctx))
}

func TestRateLimiterAcquireHonorsCancellation(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRateLimiter(1, time.Minute)
	r.now = func() time.Time { return clock }
	r.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	require.NoError(t, r.Acquire(context.Background()))
	err := r.Acquire(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}
