// Package observability provides Prometheus metrics for the estimating engine.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Edit / recompute metrics
	EditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimate_edits_total",
			Help: "Total number of estimate operations by result",
		},
		[]string{"operation", "result"},
	)

	PropagationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "estimate_propagation_duration_seconds",
			Help:    "Time taken to validate, recompute and persist one operation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)

	OrphanLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "estimate_orphan_lines_total",
			Help: "Measurement lines excluded from totals because no item could be resolved",
		},
	)

	ConsistencyErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "estimate_consistency_errors_total",
			Help: "Operations aborted because the stored tree was inconsistent",
		},
	)

	// Catalog metrics
	CatalogSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_searches_total",
			Help: "Total number of catalog searches",
		},
		[]string{"cache"},
	)

	CatalogSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_search_duration_seconds",
			Help:    "Time taken to search every catalog",
			Buckets: prometheus.DefBuckets,
		},
	)

	CatalogEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_entries",
			Help: "Entries loaded per catalog source",
		},
		[]string{"source"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Result labels an operation outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordEdit records one estimation operation.
func RecordEdit(operation string, err error, orphans int, duration time.Duration) {
	EditsTotal.WithLabelValues(operation, Result(err)).Inc()
	PropagationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if orphans > 0 {
		OrphanLines.Add(float64(orphans))
	}
}

// RecordSearch records a catalog search; cached reports whether Redis answered it.
func RecordSearch(cached bool, duration time.Duration) {
	label := "miss"
	if cached {
		label = "hit"
	}
	CatalogSearches.WithLabelValues(label).Inc()
	CatalogSearchDuration.Observe(duration.Seconds())
}

// RecordRequest records one HTTP request. route is the matched route pattern,
// not the raw path, to keep label cardinality bounded.
func RecordRequest(method, route string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
