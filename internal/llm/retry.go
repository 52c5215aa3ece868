package llm

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy controls exponential backoff around Generate calls.
// Rate-limit errors use RateLimitBase instead of Base; every wait gets
// jitter of up to JitterFraction of itself and is capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts    int
	Base           time.Duration
	RateLimitBase  time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

// OCRRetryPolicy is the reasoner's policy: 3 attempts at 1s, 2s, 4s.
func OCRRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		Base:          1 * time.Second,
		RateLimitBase: 1 * time.Second,
		MaxDelay:      8 * time.Second,
	}
}

// AuthenticityRetryPolicy backs off harder: up to 5 attempts, rate limits
// start from a 4s base (vs 2s), jitter up to 50%, each wait capped at 30s.
func AuthenticityRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		Base:           2 * time.Second,
		RateLimitBase:  4 * time.Second,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.5,
	}
}

// Delay computes the wait before retry attempt (1-based, so attempt 1 is
// the wait after the first failure).
func (p RetryPolicy) Delay(attempt int, rateLimited bool) time.Duration {
	base := p.Base
	if rateLimited && p.RateLimitBase > 0 {
		base = p.RateLimitBase
	}
	d := base << (attempt - 1)
	if p.JitterFraction > 0 {
		d += time.Duration(rand.Float64() * p.JitterFraction * float64(d))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs fn under the policy. Non-retryable errors return immediately;
// retryable errors back off until attempts or the context are exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || attempt == p.MaxAttempts {
			return lastErr
		}
		select {
		case <-time.After(p.Delay(attempt, IsRateLimited(lastErr))):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
