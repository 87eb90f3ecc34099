// Package metrics provides Prometheus collectors for the identity core.
//
// Collectors are registered with the default registry at import time and
// exposed through the authproxy's /metrics endpoint. Use the exported
// Record* helpers rather than the collectors directly:
//
//	metrics.RecordResolution("ok", elapsed)
//	metrics.RecordAuthAttempt("login", "failure")
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "callcenterx"

var (
	// ResolutionsTotal counts identity resolution cycles by outcome.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "resolutions_total",
			Help:      "Total identity resolution cycles by outcome",
		},
		[]string{"outcome"}, // outcome: ok, fallback, none, stale
	)

	// ResolutionDurationSeconds measures the duration of resolution cycles.
	ResolutionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "resolution_duration_seconds",
			Help:      "Duration of identity resolution cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// MembershipDegradedTotal counts membership reads that degraded to an
	// empty organization set.
	MembershipDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "membership_degraded_total",
			Help:      "Total membership queries that failed and degraded to zero organizations",
		},
	)

	// AuthAttemptsTotal counts proxy authentication attempts by endpoint
	// and result.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Total authentication attempts by endpoint and result",
		},
		[]string{"endpoint", "result"}, // endpoint: login, register, user; result: success, failure
	)

	// IdentityCacheTotal counts identity cache lookups by result.
	IdentityCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "identity_lookups_total",
			Help:      "Total identity cache lookups by result",
		},
		[]string{"result"}, // result: hit, miss, error
	)

	// SynthesizeRequestsTotal counts speech synthesis proxy requests.
	SynthesizeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "synth",
			Name:      "requests_total",
			Help:      "Total speech synthesis proxy requests by result",
		},
		[]string{"result"}, // result: success, failure
	)
)

// RecordResolution records one finished resolution cycle.
func RecordResolution(outcome string, elapsed time.Duration) {
	ResolutionsTotal.WithLabelValues(outcome).Inc()
	ResolutionDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RecordStaleResolution records a resolution discarded for being stale.
func RecordStaleResolution() {
	ResolutionsTotal.WithLabelValues("stale").Inc()
}

// RecordMembershipDegraded records a membership read that fell back to an
// empty organization set.
func RecordMembershipDegraded() {
	MembershipDegradedTotal.Inc()
}

// RecordAuthAttempt records a proxy authentication attempt.
func RecordAuthAttempt(endpoint, result string) {
	AuthAttemptsTotal.WithLabelValues(endpoint, result).Inc()
}

// RecordCacheLookup records an identity cache lookup.
func RecordCacheLookup(result string) {
	IdentityCacheTotal.WithLabelValues(result).Inc()
}

// RecordSynthesize records a speech synthesis proxy request.
func RecordSynthesize(result string) {
	SynthesizeRequestsTotal.WithLabelValues(result).Inc()
}
