// Package observability provides the logger and Prometheus metrics of the monitor.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for monitor runs.
type Metrics struct {
	Runs             *prometheus.CounterVec // labels: outcome={completed,rejected}
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge

	Fetches       *prometheus.CounterVec // labels: outcome={success,error}
	Alerts        *prometheus.CounterVec // labels: severity
	Decisions     *prometheus.CounterVec // labels: decision
	Notifications *prometheus.CounterVec // labels: outcome={sent,failed}
	ArchiveErrors prometheus.Counter

	LocationSeverity *prometheus.GaugeVec // labels: location
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build as many
// monitors as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_monitor",
			Name:      "runs_total",
			Help:      "Monitor runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_monitor",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete monitor run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_monitor",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_monitor",
			Name:      "fetches_total",
			Help:      "Weather fetches by outcome.",
		}, []string{"outcome"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_monitor",
			Name:      "evaluations_total",
			Help:      "Evaluations by resulting severity.",
		}, []string{"severity"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_monitor",
			Name:      "notification_decisions_total",
			Help:      "Notification gate decisions.",
		}, []string{"decision"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_monitor",
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by outcome.",
		}, []string{"outcome"}),
		ArchiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_monitor",
			Name:      "archive_errors_total",
			Help:      "Failed history appends.",
		}),
		LocationSeverity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "weather_monitor",
			Name:      "location_severity",
			Help:      "Current severity level per location (0 normal, 1 orange, 2 red).",
		}, []string{"location"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Runs,
		m.RunDuration,
		m.LastRunTimestamp,
		m.Fetches,
		m.Alerts,
		m.Decisions,
		m.Notifications,
		m.ArchiveErrors,
		m.LocationSeverity,
	}
}
