package metrics

import "github.com/prometheus/client_golang/prometheus"

// Core Prometheus metrics for the retrieval and clustering paths.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmesh",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"status"}, // "ok" / "degraded" / "error"
	)

	SearchDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmesh",
			Name:      "search_degraded_total",
			Help:      "Search requests that lost a ranking source",
		},
		[]string{"source"}, // "lexical" / "semantic"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "postmesh",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	QueryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmesh",
			Name:      "query_cache_total",
			Help:      "Fused result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	AssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmesh",
			Name:      "cluster_assignments_total",
			Help:      "Cluster assignment outcomes",
		},
		[]string{"outcome"}, // "joined" / "created" / "skipped" / "error"
	)

	AssignmentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "postmesh",
			Name:      "cluster_assignment_duration_seconds",
			Help:      "Cluster assignment duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	DebounceScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "postmesh",
			Name:      "debounce_scheduled_total",
			Help:      "Reassignment schedule requests (before coalescing)",
		},
	)

	DebounceFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmesh",
			Name:      "debounce_fired_total",
			Help:      "Debounce timer fires by outcome",
		},
		[]string{"result"}, // "run" / "superseded" / "missing"
	)
)

// Embedding metrics, incremented by the provider transport and cache.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmesh",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "postmesh",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmesh",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmesh",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var registered bool

// Register registers all core metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		SearchRequestsTotal, SearchDegradedTotal, SearchDuration,
		QueryCacheTotal,
		AssignmentsTotal, AssignmentDuration,
		DebounceScheduledTotal, DebounceFiredTotal,
		EmbeddingRequestsTotal, EmbeddingRequestDuration,
		EmbeddingTokensTotal, EmbeddingCacheTotal,
	)
	registered = true
}
