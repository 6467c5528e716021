// Package metrics exposes Prometheus metrics for the rating service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "elo"

// Claims tracks the claim lifecycle by terminal state.
var (
	ClaimsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "claims_submitted_total",
		Help:      "Match-result claims created.",
	})
	ClaimsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "claims_resolved_total",
		Help:      "Claims that reached a terminal state, by state and method.",
	}, []string{"state", "method"})
	ClaimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "claim_conflicts_total",
		Help:      "Resolution attempts that lost the race to another caller.",
	})
	StoreRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_retries_total",
		Help:      "Read-compute-write cycles retried after a store conflict.",
	})
	PendingClaims = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "claims_pending",
		Help:      "Claims currently awaiting corroboration.",
	})
	ResolutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "claim_resolution_seconds",
		Help:      "Time from claim creation to terminal transition.",
		Buckets:   prometheus.ExponentialBuckets(60, 4, 10),
	})
	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dropped_total",
		Help:      "Notification intents that could not be delivered.",
	})
)

// ObserveResolution records one terminal transition.
func ObserveResolution(state, method string, createdAt time.Time) {
	ClaimsResolved.WithLabelValues(state, method).Inc()
	ResolutionLatency.Observe(time.Since(createdAt).Seconds())
}
