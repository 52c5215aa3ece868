package ops

import (
	"sync"
	"time"

	"github.com/collectiq/collectiq/internal/pricing"
)

// Pipeline run outcomes recorded by the tracker.
const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)

// KPITracker keeps rolling operational KPIs for the worker: pipeline run
// rate, failure rate, and the hit rate of the reference-hash cache.
// Prometheus covers long-term trends; this is the at-a-glance view served
// on the debug endpoint.
type KPITracker struct {
	mu sync.RWMutex

	window time.Duration
	runs   map[string][]time.Time

	cacheHits   []time.Time
	cacheMisses []time.Time

	now func() time.Time
}

// KPISnapshot is a point-in-time view of the rolling KPIs plus the current
// pricing-source breaker states.
type KPISnapshot struct {
	WindowSeconds       float64  `json:"window_seconds"`
	RunsPerMinute       float64  `json:"runs_per_minute"`
	CompletedRuns       int      `json:"completed_runs"`
	RejectedRuns        int      `json:"rejected_runs"`
	FailedRuns          int      `json:"failed_runs"`
	DuplicateDeliveries int      `json:"duplicate_deliveries"`
	FailureRatePercent  float64  `json:"failure_rate_percent"`
	CacheHitRatePercent float64  `json:"cache_hit_rate_percent"`
	OpenBreakers        []string `json:"open_breakers"`
}

// NewKPITracker creates a tracker with the given rolling window.
func NewKPITracker(window time.Duration) *KPITracker {
	return &KPITracker{
		window: window,
		runs:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// RecordRun records a pipeline run by outcome.
func (k *KPITracker) RecordRun(outcome string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	k.runs[outcome] = pruneBefore(append(k.runs[outcome], now), now.Add(-k.window))
}

// RecordCacheHit records a reference-hash cache hit.
func (k *KPITracker) RecordCacheHit() {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	k.cacheHits = pruneBefore(append(k.cacheHits, now), now.Add(-k.window))
}

// RecordCacheMiss records a reference-hash cache miss.
func (k *KPITracker) RecordCacheMiss() {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	k.cacheMisses = pruneBefore(append(k.cacheMisses, now), now.Add(-k.window))
}

// Snapshot computes the current KPIs. Breaker states come from the passed
// adapter stats so the tracker itself holds no pricing state.
func (k *KPITracker) Snapshot(stats []pricing.AdapterStats) KPISnapshot {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := k.now().Add(-k.window)
	for outcome, stamps := range k.runs {
		k.runs[outcome] = pruneBefore(stamps, cutoff)
	}
	k.cacheHits = pruneBefore(k.cacheHits, cutoff)
	k.cacheMisses = pruneBefore(k.cacheMisses, cutoff)

	snap := KPISnapshot{
		WindowSeconds:       k.window.Seconds(),
		CompletedRuns:       len(k.runs[OutcomeCompleted]),
		RejectedRuns:        len(k.runs[OutcomeRejected]),
		FailedRuns:          len(k.runs[OutcomeFailed]),
		DuplicateDeliveries: len(k.runs[OutcomeDuplicate]),
		OpenBreakers:        []string{},
	}

	// Duplicates are deliveries, not runs: they stay out of the rates.
	total := snap.CompletedRuns + snap.RejectedRuns + snap.FailedRuns
	if k.window > 0 {
		snap.RunsPerMinute = float64(total) * 60 / k.window.Seconds()
	}
	if total > 0 {
		snap.FailureRatePercent = float64(snap.FailedRuns) / float64(total) * 100
	}

	lookups := len(k.cacheHits) + len(k.cacheMisses)
	if lookups > 0 {
		snap.CacheHitRatePercent = float64(len(k.cacheHits)) / float64(lookups) * 100
	}

	for _, s := range stats {
		if s.CircuitState != "closed" {
			snap.OpenBreakers = append(snap.OpenBreakers, s.Name)
		}
	}
	return snap
}

// pruneBefore drops timestamps at or before cutoff, keeping order.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}
