package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filehub",
			Subsystem: "file_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filehub",
			Subsystem: "file_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// Upload counters
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filehub",
			Subsystem: "file_api",
			Name:      "uploads_total",
			Help:      "Total file uploads by result (created or deduplicated)",
		},
		[]string{"media_type", "result"},
	)

	// Upload bytes counter
	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filehub",
			Subsystem: "file_api",
			Name:      "upload_bytes_total",
			Help:      "Total bytes uploaded",
		},
		[]string{"media_type"},
	)

	// Bytes not written to storage thanks to deduplication
	DedupBytesSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "filehub",
			Subsystem: "file_api",
			Name:      "dedup_bytes_saved_total",
			Help:      "Total payload bytes saved by deduplication",
		},
	)

	// Delete counters
	DeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filehub",
			Subsystem: "file_api",
			Name:      "deletes_total",
			Help:      "Total record deletions by kind (owner or duplicate)",
		},
		[]string{"kind"},
	)

	// Ownership transfers performed on owner deletion
	PromotionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "filehub",
			Subsystem: "file_api",
			Name:      "promotions_total",
			Help:      "Total duplicate-to-owner promotions",
		},
	)

	// Cache operations counter
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filehub",
			Subsystem: "file_api",
			Name:      "cache_operations_total",
			Help:      "Total cache operations by result",
		},
		[]string{"operation", "result"},
	)

	// Store-then-verify mismatches
	CacheVerificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "filehub",
			Subsystem: "file_api",
			Name:      "cache_verification_failures_total",
			Help:      "Total cache read-back verification failures",
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordUpload records a file upload
func RecordUpload(mediaType, result string, bytes int64) {
	UploadsTotal.WithLabelValues(mediaType, result).Inc()
	UploadBytesTotal.WithLabelValues(mediaType).Add(float64(bytes))
}

// RecordBytesSaved records payload bytes not re-stored for a duplicate
func RecordBytesSaved(bytes int64) {
	DedupBytesSavedTotal.Add(float64(bytes))
}

// RecordDelete records a record deletion
func RecordDelete(kind string) {
	DeletesTotal.WithLabelValues(kind).Inc()
}

// RecordPromotion records a duplicate being promoted to owner
func RecordPromotion() {
	PromotionsTotal.Inc()
}

// RecordCacheOp records a cache operation outcome
func RecordCacheOp(operation, result string) {
	CacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordCacheVerificationFailure records a store-then-verify mismatch
func RecordCacheVerificationFailure() {
	CacheVerificationFailures.Inc()
}
