// Package metrics exposes Prometheus instrumentation for the history store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Capture outcomes.
const (
	OutcomeRecorded = "recorded"
	OutcomeGhost    = "ghost"
	OutcomeEmpty    = "empty"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

// Blob eviction reasons.
const (
	ReasonCap    = "cap"
	ReasonOrphan = "orphan"
)

// Metrics holds all custom Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Captures       *prometheus.CounterVec
	CaptureLatency prometheus.Histogram
	LedgerEntries  prometheus.Gauge
	BlobRecords    prometheus.Gauge
	BlobEvictions  *prometheus.CounterVec
	Notifications  prometheus.Counter
}

// New registers the metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Captures by kind (text/image) and outcome
		Captures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sideclip_captures_total",
			Help: "Total number of capture events by kind and outcome",
		}, []string{"kind", "outcome"}),

		CaptureLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sideclip_capture_duration_seconds",
			Help:    "Time to process one capture event, including reconcile",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		LedgerEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sideclip_ledger_entries",
			Help: "Number of entries in the history ledger",
		}),

		BlobRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sideclip_blob_records",
			Help: "Number of image records in the blob store",
		}),

		// Blob evictions by reason: cap (oldest over the limit) or orphan (unreferenced)
		BlobEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sideclip_blob_evictions_total",
			Help: "Total number of image records evicted by reason",
		}, []string{"reason"}),

		Notifications: factory.NewCounter(prometheus.CounterOpts{
			Name: "sideclip_notifications_total",
			Help: "Total number of change notifications published",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCapture counts one capture and records how long it took.
func (m *Metrics) ObserveCapture(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Captures.WithLabelValues(kind, outcome).Inc()
	m.CaptureLatency.Observe(elapsed.Seconds())
}

// SetCounts updates the collection size gauges.
func (m *Metrics) SetCounts(entries, blobs int) {
	if m == nil {
		return
	}
	m.LedgerEntries.Set(float64(entries))
	m.BlobRecords.Set(float64(blobs))
}

// AddEvictions counts evicted image records.
func (m *Metrics) AddEvictions(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BlobEvictions.WithLabelValues(reason).Add(float64(n))
}

// IncNotifications counts one published snapshot.
func (m *Metrics) IncNotifications() {
	if m == nil {
		return
	}
	m.Notifications.Inc()
}
