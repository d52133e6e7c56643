// metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for lifecycle operations. Failures use the error kind.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// LifecycleOperations counts lifecycle calls by operation and outcome.
var LifecycleOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mission_control_lifecycle_operations_total",
		Help: "Total number of participant lifecycle operations",
	},
	[]string{"operation", "outcome"},
)

// LifecycleDuration observes how long lifecycle calls take.
var LifecycleDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "mission_control_lifecycle_duration_seconds",
		Help:    "Participant lifecycle operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// AssetUploadBytes counts bytes handed to asset storage, by asset role.
var AssetUploadBytes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mission_control_asset_upload_bytes_total",
		Help: "Total bytes uploaded to asset storage",
	},
	[]string{"role"},
)

// EventsClosed counts events deactivated by the expiry job.
var EventsClosed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "mission_control_events_closed_total",
		Help: "Total number of events closed after their end time",
	},
)

// RegisterMetrics registers every collector with reg. Panics on duplicate
// registration, following prometheus convention.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LifecycleOperations)
	reg.MustRegister(LifecycleDuration)
	reg.MustRegister(AssetUploadBytes)
	reg.MustRegister(EventsClosed)
}

// RecordOperation records one finished lifecycle call.
func RecordOperation(operation, outcome string, took time.Duration) {
	LifecycleOperations.WithLabelValues(operation, outcome).Inc()
	LifecycleDuration.WithLabelValues(operation).Observe(took.Seconds())
}

// RecordUpload records an asset handed to storage.
func RecordUpload(role string, size int) {
	AssetUploadBytes.WithLabelValues(role).Add(float64(size))
}
