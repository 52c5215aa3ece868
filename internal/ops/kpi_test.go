package ops

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/collectiq/collectiq/internal/pricing"
)

func newTestTracker(window time.Duration) (*KPITracker, *time.Time) {
	k := NewKPITracker(window)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return now }
	return k, &now
}

func TestKPIRunRate(t *testing.T) {
	k, _ := newTestTracker(time.Minute)
	for i := 0; i < 10; i++ {
		k.RecordRun(OutcomeCompleted)
	}

	snap := k.Snapshot(nil)
	assert.Equal(t, 10, snap.CompletedRuns)
	assert.InDelta(t, 10.0, snap.RunsPerMinute, 1e-9)
	assert.Zero(t, snap.FailureRatePercent)
}

func TestKPIFailureRate(t *testing.T) {
	k, _ := newTestTracker(time.Minute)
	for i := 0; i < 8; i++ {
		k.RecordRun(OutcomeCompleted)
	}
	k.RecordRun(OutcomeFailed)
	k.RecordRun(OutcomeFailed)

	snap := k.Snapshot(nil)
	assert.Equal(t, 8, snap.CompletedRuns)
	assert.Equal(t, 2, snap.FailedRuns)
	assert.InDelta(t, 20.0, snap.FailureRatePercent, 1e-9)
}

func TestKPIDuplicatesStayOutOfRates(t *testing.T) {
	k, _ := newTestTracker(time.Minute)
	k.RecordRun(OutcomeCompleted)
	for i := 0; i < 5; i++ {
		k.RecordRun(OutcomeDuplicate)
	}

	snap := k.Snapshot(nil)
	assert.Equal(t, 5, snap.DuplicateDeliveries)
	assert.InDelta(t, 1.0, snap.RunsPerMinute, 1e-9)
	assert.Zero(t, snap.FailureRatePercent)
}

func TestKPICacheHitRate(t *testing.T) {
	k, _ := newTestTracker(time.Minute)
	for i := 0; i < 7; i++ {
		k.RecordCacheHit()
	}
	for i := 0; i < 3; i++ {
		k.RecordCacheMiss()
	}

	snap := k.Snapshot(nil)
	assert.InDelta(t, 70.0, snap.CacheHitRatePercent, 1e-9)
}

func TestKPIWindowExpiry(t *testing.T) {
	k, now := newTestTracker(time.Minute)
	k.RecordRun(OutcomeCompleted)
	k.RecordCacheHit()

	*now = now.Add(2 * time.Minute)
	k.RecordRun(OutcomeFailed)

	snap := k.Snapshot(nil)
	assert.Zero(t, snap.CompletedRuns, "runs older than the window drop out")
	assert.Equal(t, 1, snap.FailedRuns)
	assert.Zero(t, snap.CacheHitRatePercent)
	assert.InDelta(t, 100.0, snap.FailureRatePercent, 1e-9)
}

func TestKPIOpenBreakers(t *testing.T) {
	k, _ := newTestTracker(time.Minute)

	snap := k.Snapshot([]pricing.AdapterStats{
		{Name: "PokemonTCG", CircuitState: "closed"},
		{Name: "eBay", CircuitState: "open", Failures: 5},
		{Name: "Cardmarket", CircuitState: "half-open"},
	})
	assert.Equal(t, []string{"eBay", "Cardmarket"}, snap.OpenBreakers)

	empty := k.Snapshot(nil)
	assert.Empty(t, empty.OpenBreakers)
	assert.NotNil(t, empty.OpenBreakers, "serializes as [] rather than null")
}
