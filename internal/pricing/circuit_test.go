package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(5, time.Minute)

	for i := 0; i < 4; i++ {
		cb.OnFailure()
		assert.True(t, cb.Available(), "failure %d should not open the circuit", i+1)
	}
	cb.OnFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Available())
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(5, time.Minute)
	for i := 0; i < 4; i++ {
		cb.OnFailure()
	}
	cb.OnSuccess()
	assert.Zero(t, cb.Failures())
	for i := 0; i < 4; i++ {
		cb.OnFailure()
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(5, time.Minute)
	cb.now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		cb.OnFailure()
	}
	assert.False(t, cb.Available())

	clock = clock.Add(30 * time.Second)
	assert.False(t, cb.Available(), "still open inside the timeout")

	clock = clock.Add(30 * time.Second)
	assert.True(t, cb.Available(), "timeout elapsed, probe admitted")
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// Probe success closes the circuit for good.
	cb.OnSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.True(t, cb.Available())
}

func TestCircuitBreakerProbeFailureReopens(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(5, time.Minute)
	cb.now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		cb.OnFailure()
	}
	clock = clock.Add(time.Minute)
	assert.True(t, cb.Available())

	cb.OnFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Available())

	// The reopened circuit waits a fresh timeout before the next probe.
	clock = clock.Add(59 * time.Second)
	assert.False(t, cb.Available())
	clock = clock.Add(time.Second)
	assert.True(t, cb.Available())
}

func TestCircuitBreakerAvailableDoesNotConsumeProbe(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(5, time.Minute)
	cb.now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		cb.OnFailure()
	}
	clock = clock.Add(time.Minute)

	assert.True(t, cb.Available())
	assert.True(t, cb.Available(), "repeated availability checks stay true until the probe resolves")
}
