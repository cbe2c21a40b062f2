// Package monitoring exposes Prometheus metrics for the runtime.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the runtime System.
type Metrics struct {
	// Worker metrics
	WorkersActive prometheus.Gauge
	WorkersTotal  prometheus.Counter

	// Queue metrics
	QueuesActive prometheus.Gauge

	// Process table metrics
	ProcessesLive  prometheus.Gauge
	ProcessesTotal prometheus.Counter

	// Scope metrics
	ScopesTotal prometheus.Counter

	// Lifecycle metrics
	ShutdownSeconds prometheus.Gauge
	Uptime          prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates a new metrics collector registered against the
// default Prometheus registry. Construct once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		WorkersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "runtime_workers_active",
			Help: "Number of live workers",
		}),
		WorkersTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "runtime_workers_total",
			Help: "Total number of workers created",
		}),

		QueuesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "runtime_queues_active",
			Help: "Number of registered queues",
		}),

		ProcessesLive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "runtime_processes_live",
			Help: "Number of live logical processes",
		}),
		ProcessesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "runtime_processes_total",
			Help: "Total number of pids allocated",
		}),

		ScopesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "runtime_scopes_total",
			Help: "Total number of scopes created",
		}),

		ShutdownSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "runtime_shutdown_duration_seconds",
			Help: "Wall time of the last Shutdown call",
		}),
		Uptime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "runtime_uptime_seconds",
			Help: "Process uptime in seconds",
		}),
	}
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
