// Package metrics registers the Prometheus collectors for uploads and queries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts finished ingestion runs by outcome.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_uploads_total",
			Help: "Ingestion runs by outcome (ok, aborted, failed, cancelled)",
		},
		[]string{"outcome"},
	)

	// RowsTotal counts processed rows by result.
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_rows_total",
			Help: "Rows processed by result (inserted, skipped)",
		},
		[]string{"result"},
	)

	// BatchFallbacksTotal counts batch inserts that fell back to per-row writes.
	BatchFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_batch_fallbacks_total",
			Help: "Batch inserts rejected by a duplicate key and replayed row by row",
		},
	)

	// UploadDuration observes wall time per ingestion run.
	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricing_upload_duration_seconds",
			Help:    "Duration of ingestion runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~163s
		},
	)

	// QueryCacheTotal counts paged reads by cache result.
	QueryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_query_cache_total",
			Help: "Paged pricing reads by cache result (hit, miss)",
		},
		[]string{"result"},
	)

	// ProgressDeliveryFailures counts progress notifications that could not be delivered.
	ProgressDeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_progress_delivery_failures_total",
			Help: "Progress notifications dropped after a delivery error",
		},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
