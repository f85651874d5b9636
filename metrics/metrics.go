// Package metrics exposes Prometheus metrics for the sync engine.
//
// Metrics are registered once through Init. Every recording method is safe
// to call on a nil *Metrics, so library code records unconditionally and
// nothing is exported until a binary calls Init.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status labels.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusDuplicate = "duplicate"
	StatusCanceled  = "canceled"
)

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// Metrics holds all Prometheus metrics for the sync engine.
type Metrics struct {
	// Storage requests
	RequestsTotal   *prometheus.CounterVec   // s3sync_requests_total{operation,status}
	RequestDuration *prometheus.HistogramVec // s3sync_request_duration_seconds{operation}

	// Transfers
	BytesUploaded   prometheus.Counter // s3sync_bytes_uploaded_total
	BytesDownloaded prometheus.Counter // s3sync_bytes_downloaded_total
	MultipartParts  prometheus.Counter // s3sync_multipart_parts_total

	// Sync outcomes
	SyncsTotal         *prometheus.CounterVec // s3sync_syncs_total{direction,status}
	DuplicatesSkipped  prometheus.Counter     // s3sync_duplicates_skipped_total
	IntegrityFailures  *prometheus.CounterVec // s3sync_integrity_failures_total{direction}
	ChecksumRetries    prometheus.Counter     // s3sync_checksum_retries_total
	UploadsInFlight    prometheus.Gauge       // s3sync_uploads_in_flight
	DeletionAttempts   prometheus.Histogram   // s3sync_deletion_attempts
	DedupScanSkipped   prometheus.Counter     // s3sync_dedup_scan_skipped_total
	URLStrategyResults *prometheus.CounterVec // s3sync_url_strategy_total{strategy,status}
}

// Init registers all metrics with registry (prometheus.DefaultRegisterer when nil).
// Metrics are only registered once; subsequent calls return the same instance.
func Init(registry prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		factory := promauto.With(registry)
		metricsInstance = &Metrics{
			RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "s3sync_requests_total",
				Help: "Object store requests by operation and status",
			}, []string{"operation", "status"}),

			RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "s3sync_request_duration_seconds",
				Help:    "Object store request duration in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),

			BytesUploaded: factory.NewCounter(prometheus.CounterOpts{
				Name: "s3sync_bytes_uploaded_total",
				Help: "Total bytes uploaded to the object store",
			}),

			BytesDownloaded: factory.NewCounter(prometheus.CounterOpts{
				Name: "s3sync_bytes_downloaded_total",
				Help: "Total bytes downloaded from the object store",
			}),

			MultipartParts: factory.NewCounter(prometheus.CounterOpts{
				Name: "s3sync_multipart_parts_total",
				Help: "Total multipart parts uploaded",
			}),

			SyncsTotal: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "s3sync_syncs_total",
				Help: "Upload and download operations by direction and outcome",
			}, []string{"direction", "status"}),

			DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
				Name: "s3sync_duplicates_skipped_total",
				Help: "Uploads skipped because identical content was already stored",
			}),

			IntegrityFailures: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "s3sync_integrity_failures_total",
				Help: "MD5 mismatches detected after a transfer",
			}, []string{"direction"}),

			ChecksumRetries: factory.NewCounter(prometheus.CounterOpts{
				Name: "s3sync_checksum_retries_total",
				Help: "Downloads retried without response checksum validation",
			}),

			UploadsInFlight: factory.NewGauge(prometheus.GaugeOpts{
				Name: "s3sync_uploads_in_flight",
				Help: "Uploads currently holding a key in the in-flight registry",
			}),

			DeletionAttempts: factory.NewHistogram(prometheus.HistogramOpts{
				Name:    "s3sync_deletion_attempts",
				Help:    "Delete requests issued per confirmed deletion",
				Buckets: []float64{1, 2, 3, 4},
			}),

			DedupScanSkipped: factory.NewCounter(prometheus.CounterOpts{
				Name: "s3sync_dedup_scan_skipped_total",
				Help: "Objects skipped during duplicate scans because metadata was unreadable",
			}),

			URLStrategyResults: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "s3sync_url_strategy_total",
				Help: "Public URL strategy attempts by strategy and status",
			}, []string{"strategy", "status"}),
		}
	})

	return metricsInstance
}

// Get returns the singleton metrics instance.
// Returns nil if metrics have not been initialized.
func Get() *Metrics {
	return metricsInstance
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// ObserveRequest records a storage request that started at start.
func (m *Metrics) ObserveRequest(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, statusOf(err)).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordUpload records bytes uploaded.
func (m *Metrics) RecordUpload(bytes int64) {
	if m == nil {
		return
	}
	m.BytesUploaded.Add(float64(bytes))
}

// RecordDownload records bytes downloaded.
func (m *Metrics) RecordDownload(bytes int64) {
	if m == nil {
		return
	}
	m.BytesDownloaded.Add(float64(bytes))
}

// RecordParts records multipart parts uploaded.
func (m *Metrics) RecordParts(n int) {
	if m == nil {
		return
	}
	m.MultipartParts.Add(float64(n))
}

// RecordSync records the outcome of an upload or download.
func (m *Metrics) RecordSync(direction, status string) {
	if m == nil {
		return
	}
	m.SyncsTotal.WithLabelValues(direction, status).Inc()
	if status == StatusDuplicate {
		m.DuplicatesSkipped.Inc()
	}
}

// RecordIntegrityFailure records an MD5 mismatch.
func (m *Metrics) RecordIntegrityFailure(direction string) {
	if m == nil {
		return
	}
	m.IntegrityFailures.WithLabelValues(direction).Inc()
}

// RecordChecksumRetry records a download retried without checksum validation.
func (m *Metrics) RecordChecksumRetry() {
	if m == nil {
		return
	}
	m.ChecksumRetries.Inc()
}

// SetUploadsInFlight updates the in-flight gauge.
func (m *Metrics) SetUploadsInFlight(n int) {
	if m == nil {
		return
	}
	m.UploadsInFlight.Set(float64(n))
}

// RecordDeletion records how many delete requests a deletion needed.
func (m *Metrics) RecordDeletion(attempts int) {
	if m == nil {
		return
	}
	m.DeletionAttempts.Observe(float64(attempts))
}

// RecordScanSkipped records objects skipped during a duplicate scan.
func (m *Metrics) RecordScanSkipped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DedupScanSkipped.Add(float64(n))
}

// RecordURLStrategy records one public URL strategy attempt.
func (m *Metrics) RecordURLStrategy(strategy string, err error) {
	if m == nil {
		return
	}
	m.URLStrategyResults.WithLabelValues(strategy, statusOf(err)).Inc()
}
