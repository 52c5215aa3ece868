package pricing

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a sliding-window request limiter. It tracks request
// timestamps inside a rolling window; when the window is full, Acquire
// sleeps until the oldest timestamp falls out. State is per adapter
// instance and process-local.
type RateLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	stamps   []time.Time
	now      func() time.Time // swappable for tests
	sleep    func(context.Context, time.Duration) error
}

// NewRateLimiter creates a limiter allowing max requests per window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		window: window,
		max:    max,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Acquire blocks until a request slot is free, then records the request.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		now := r.now()
		r.prune(now)
		if len(r.stamps) < r.max {
			r.stamps = append(r.stamps, now)
			return nil
		}
		wait := r.stamps[0].Add(r.window).Sub(now)
		r.mu.Unlock()
		err := r.sleep(ctx, wait)
		r.mu.Lock()
		if err != nil {
			return err
		}
	}
}

// Pending returns the number of requests currently inside the window.
func (r *RateLimiter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(r.now())
	return len(r.stamps)
}

// prune drops timestamps older than the window. Caller holds the lock.
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.stamps) && !r.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.stamps = append(r.stamps[:0], r.stamps[i:]...)
	}
}
