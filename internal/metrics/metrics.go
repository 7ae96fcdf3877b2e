// Package metrics exposes Prometheus instrumentation for the reconciler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsTotal counts topology transactions by outcome.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostnet",
		Subsystem: "topology",
		Name:      "transactions_total",
		Help:      "Topology transactions by outcome (applied, validation_failed, rolled_back).",
	}, []string{"outcome"})

	// RollbackStepsTotal counts individual rollback steps by outcome.
	RollbackStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostnet",
		Subsystem: "topology",
		Name:      "rollback_steps_total",
		Help:      "Rollback steps executed, by outcome (ok, failed).",
	}, []string{"outcome"})

	// LinkUpWaitSeconds observes how long blocking link-up waits took.
	LinkUpWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hostnet",
		Subsystem: "link",
		Name:      "up_wait_seconds",
		Help:      "Duration of blocking link-up waits.",
		Buckets:   prometheus.DefBuckets,
	})

	// DriftChecksTotal counts convergence checks by result.
	DriftChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostnet",
		Subsystem: "config",
		Name:      "drift_checks_total",
		Help:      "Desired-vs-running comparisons, by result (converged, drifted).",
	}, []string{"result"})

	// SourceRoutesActive tracks the number of configured source-route domains.
	SourceRoutesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hostnet",
		Subsystem: "sourceroute",
		Name:      "active",
		Help:      "Source-route domains currently held in memory.",
	})
)
