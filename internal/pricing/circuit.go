package pricing

import (
	"sync"
	"time"
)

// CircuitState is the state of an adapter's circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker is a consecutive-failure count breaker. It opens after
// threshold failures, stays open for the timeout, then admits a single
// half-open probe: success closes it, failure reopens it. State is per
// adapter instance and process-local; access is serialized.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	timeout   time.Duration
	state     CircuitState
	failures  int
	openedAt  time.Time
	now       func() time.Time
}

// NewCircuitBreaker creates a breaker opening after threshold consecutive
// failures and probing after timeout.
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		state:     CircuitClosed,
		now:       time.Now,
	}
}

// Available reports whether a call may be made. While open, it returns
// false until the timeout elapses, at which point the breaker moves to
// half-open and the next call becomes the probe. Checking availability
// never consumes the probe.
func (cb *CircuitBreaker) Available() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.openedAt) >= cb.timeout {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	}
	return true
}

// OnSuccess records a successful call: the breaker closes and the failure
// count resets.
func (cb *CircuitBreaker) OnSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
}

// OnFailure records a failed call. A half-open probe failure reopens
// immediately; in closed state the breaker opens at the threshold.
func (cb *CircuitBreaker) OnFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.threshold {
		cb.state = CircuitOpen
		cb.openedAt = cb.now()
	}
}

// State returns the current state without side effects.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
