// Package metrics exposes the pipeline's Prometheus instrumentation.
// Everything registers on the default registry and is served by the ops
// HTTP endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts completed pipeline executions by outcome
	// (completed, rejected, failed, duplicate).
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collectiq",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline executions by outcome",
	}, []string{"outcome"})

	// StageDuration observes per-stage latency.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "collectiq",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Stage latency by stage name",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})

	// BranchFailures counts fan-out branches that degraded to fallbacks.
	BranchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collectiq",
		Subsystem: "pipeline",
		Name:      "branch_failures_total",
		Help:      "Fan-out branches that fell back",
	}, []string{"branch"})

	// DeadLetters counts submissions whose results could not be persisted.
	DeadLetters = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collectiq",
		Subsystem: "pipeline",
		Name:      "dead_letters_total",
		Help:      "Submissions written to the dead letter store",
	})

	// FakesDetected counts submissions flagged as counterfeit.
	FakesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collectiq",
		Subsystem: "authenticity",
		Name:      "fakes_detected_total",
		Help:      "Submissions flagged as likely counterfeit",
	})
)
