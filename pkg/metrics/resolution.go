package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every collector this package owns. The metrics endpoint
// serves it directly, so nothing leaks in through the global default
// registry.
var Registry = prometheus.NewRegistry()

// Resolution outcomes labelled on the attempt counter.
const (
	OutcomeResolved     = "resolved"
	OutcomeUnresolved   = "unresolved"
	OutcomeMalformed    = "malformed"
	OutcomeNotFound     = "not_found"
	OutcomeAccessDenied = "access_denied"
	OutcomeInternal     = "internal"
)

var (
	ResolutionAttempts = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "rescueranger",
		Subsystem: "tenant",
		Name:      "resolution_attempts_total",
		Help:      "Tenant resolution attempts by outcome and signal source.",
	}, []string{"outcome", "source"})

	ResolutionDuration = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: "rescueranger",
		Subsystem: "tenant",
		Name:      "resolution_duration_seconds",
		Help:      "Latency of tenant resolution including directory lookup.",
		Buckets:   prometheus.DefBuckets,
	})

	CrossTenantAttempts = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "rescueranger",
		Subsystem: "tenant",
		Name:      "cross_tenant_attempts_total",
		Help:      "Cross-tenant attempts by whether they were blocked.",
	}, []string{"blocked"})

	DirectoryCacheHits = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "rescueranger",
		Subsystem: "tenant",
		Name:      "directory_cache_requests_total",
		Help:      "Tenant directory cache lookups by result (hit, miss, error).",
	}, []string{"result"})
)
