// ============================================================================
// Missiond Metrics - Prometheus instrumentation
// ============================================================================
//
// Package: internal/metrics
// Purpose: Counters, gauges and a latency histogram for the orchestration
// core, exposed through /metrics in the Prometheus text format.
//
// Metrics:
//   - mission_tasks_published_total        tasks handed to the queue
//   - mission_results_total{status}        results processed by engines
//   - mission_hosts_locked_total           hosts hitting their failure budget
//   - mission_active                       engines currently running
//   - mission_result_latency_seconds       queue-publish to result-processed
//
// ============================================================================

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the missiond metric set.
type Collector struct {
	tasksPublished prometheus.Counter
	results        *prometheus.CounterVec
	hostsLocked    prometheus.Counter
	missionsActive prometheus.Gauge
	resultLatency  prometheus.Histogram
}

// NewCollector registers the metric set against reg (the default registry
// when reg is nil). Tests pass their own registry so collectors do not
// collide across cases.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		tasksPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mission_tasks_published_total",
			Help: "Total number of tasks published to the task queue",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mission_results_total",
			Help: "Total number of result events processed, by status",
		}, []string{"status"}),
		hostsLocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mission_hosts_locked_total",
			Help: "Total number of hosts locked after exhausting their failure budget",
		}),
		missionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mission_active",
			Help: "Number of mission engines currently running",
		}),
		resultLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mission_result_latency_seconds",
			Help:    "Latency from task publish to result processed",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(c.tasksPublished, c.results, c.hostsLocked, c.missionsActive, c.resultLatency)
	return c
}

// RecordTaskPublished counts one task handed to the queue.
func (c *Collector) RecordTaskPublished() {
	if c == nil {
		return
	}
	c.tasksPublished.Inc()
}

// RecordResult counts one processed result and its latency.
func (c *Collector) RecordResult(status string, latencySeconds float64) {
	if c == nil {
		return
	}
	c.results.WithLabelValues(status).Inc()
	if latencySeconds >= 0 {
		c.resultLatency.Observe(latencySeconds)
	}
}

// RecordHostLocked counts one host lock.
func (c *Collector) RecordHostLocked() {
	if c == nil {
		return
	}
	c.hostsLocked.Inc()
}

// MissionStarted / MissionStopped track the active engine gauge.
func (c *Collector) MissionStarted() {
	if c == nil {
		return
	}
	c.missionsActive.Inc()
}

func (c *Collector) MissionStopped() {
	if c == nil {
		return
	}
	c.missionsActive.Dec()
}
