// Package metrics defines the Prometheus collectors exported by the archiver.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRuns counts finished sync runs by terminal state
	// (caught_up, exhausted, failed).
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobble_sync_runs_total",
			Help: "Finished sync runs by terminal state",
		},
		[]string{"state"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrobble_sync_duration_seconds",
			Help:    "Duration of sync runs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 900, 3600},
		},
	)

	PagesCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrobble_pages_committed_total",
			Help: "History pages committed to the store",
		},
	)

	ListensArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrobble_listens_archived_total",
			Help: "Listens inserted into the store",
		},
	)

	UnresolvedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrobble_unresolved_events_total",
			Help: "Listen events routed to the unresolved side table",
		},
	)

	// Watermark is the unix timestamp of the newest archived listen.
	Watermark = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrobble_watermark_timestamp_seconds",
			Help: "Timestamp of the most recent archived listen",
		},
	)

	// CatalogRequests counts catalog API calls by operation and result
	// (ok, not_found, error).
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobble_catalog_requests_total",
			Help: "Catalog API requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	CatalogCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobble_catalog_cache_hits_total",
			Help: "Catalog lookups served from the in-process cache",
		},
		[]string{"entity"},
	)
)

// Catalog request results.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// RecordSyncRun records the outcome of one sync run.
func RecordSyncRun(state string, duration time.Duration) {
	SyncRuns.WithLabelValues(state).Inc()
	SyncDuration.Observe(duration.Seconds())
}

// RecordPage records one committed page and what it contained.
func RecordPage(listens, unresolved int) {
	PagesCommitted.Inc()
	ListensArchived.Add(float64(listens))
	UnresolvedEvents.Add(float64(unresolved))
}

// SetWatermark publishes the current watermark.
func SetWatermark(t time.Time) {
	Watermark.Set(float64(t.Unix()))
}

// RecordCatalogRequest records one catalog API call.
func RecordCatalogRequest(operation, result string) {
	CatalogRequests.WithLabelValues(operation, result).Inc()
}
