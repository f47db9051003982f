package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sdu-escience/gridgate/pkg/content/s3"
)

// blobMetrics implements s3.S3Metrics for the blob store behind the grid's
// data objects. Operations are labelled with the s3.Op* constants.
type blobMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesTotal      *prometheus.CounterVec
	objectsTotal    *prometheus.CounterVec
}

// NewS3Metrics returns nil when the registry is not initialized; the S3
// content store then records nothing.
func NewS3Metrics() s3.S3Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &blobMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridgate_blob_requests_total",
				Help: "S3 requests made for data object content, by operation and status",
			},
			[]string{"operation", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gridgate_blob_request_duration_seconds",
				Help: "Latency of S3 requests made for data object content",
				// a whole blob moves per request, so the tail is long
				Buckets: []float64{0.005, 0.025, 0.1, 0.25, 1, 2.5, 10, 30, 120},
			},
			[]string{"operation"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridgate_blob_bytes_total",
				Help: "Data object bytes read from (get) or written to (put) S3",
			},
			[]string{"operation"},
		),
		objectsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridgate_blob_gc_objects_total",
				Help: "Blobs listed (list) or removed (delete_batch) by orphan collection",
			},
			[]string{"operation"},
		),
	}
}

func (m *blobMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.requestsTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *blobMetrics) RecordBytes(operation string, bytes int64) {
	m.bytesTotal.WithLabelValues(operation).Add(float64(bytes))
}

func (m *blobMetrics) RecordObjects(operation string, count int) {
	if count > 0 {
		m.objectsTotal.WithLabelValues(operation).Add(float64(count))
	}
}
