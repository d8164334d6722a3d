// Package metrics exposes Prometheus counters for sync batches,
// notifications and retention.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "prwatch"

// Batch results
const (
	ResultSuccess       = "success"
	ResultError         = "error"
	ResultRateLimited   = "rate_limited"
	ResultNotAccessible = "not_accessible"
)

// Identity attempt outcomes
const (
	OutcomeSuccess     = "success"
	OutcomeSkipped     = "skipped"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	batchesTotal            *prometheus.CounterVec
	batchDuration           *prometheus.HistogramVec
	notificationsCreated    *prometheus.CounterVec
	notificationsSuperseded prometheus.Counter
	retentionDeleted        *prometheus.CounterVec
	identityAttempts        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg when it is not nil
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sync",
			Name:      "batches_total",
			Help:      "Total number of sync batches by operation and result.",
		}, []string{"operation", "result"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "sync",
			Name:      "batch_duration_seconds",
			Help:      "Sync batch latency in seconds, including remote fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		notificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Total number of notifications created by type.",
		}, []string{"type"}),
		notificationsSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "notifications",
			Name:      "superseded_total",
			Help:      "Total number of notifications marked toasted because a newer one replaced them.",
		}),
		retentionDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "retention",
			Name:      "deleted_total",
			Help:      "Total number of rows removed by the retention sweep by table.",
		}, []string{"table"}),
		identityAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "identity",
			Name:      "attempts_total",
			Help:      "Total number of identity attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.batchesTotal, m.batchDuration, m.notificationsCreated,
			m.notificationsSuperseded, m.retentionDeleted, m.identityAttempts)
	}
	return m
}

// ObserveBatch records one finished batch
func (m *Metrics) ObserveBatch(operation, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(operation, result).Inc()
	m.batchDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// NotificationCreated counts one created notification
func (m *Metrics) NotificationCreated(typ string) {
	if m == nil {
		return
	}
	m.notificationsCreated.WithLabelValues(typ).Inc()
}

// NotificationsSuperseded counts superseded notifications
func (m *Metrics) NotificationsSuperseded(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.notificationsSuperseded.Add(float64(n))
}

// RetentionDeleted counts rows removed from table
func (m *Metrics) RetentionDeleted(table string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.retentionDeleted.WithLabelValues(table).Add(float64(n))
}

// IdentityAttempt counts one identity attempt
func (m *Metrics) IdentityAttempt(outcome string) {
	if m == nil {
		return
	}
	m.identityAttempts.WithLabelValues(outcome).Inc()
}

// Handler serves the metrics gathered by gatherer, or the default gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
