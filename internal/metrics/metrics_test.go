package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	assert.NotNil(t, collector, "NewCollector should return a non-nil collector")
	assert.NotNil(t, collector.tasksPublished, "tasksPublished counter should be initialized")
	assert.NotNil(t, collector.results, "results counter vec should be initialized")
	assert.NotNil(t, collector.hostsLocked, "hostsLocked counter should be initialized")
	assert.NotNil(t, collector.missionsActive, "missionsActive gauge should be initialized")
	assert.NotNil(t, collector.resultLatency, "resultLatency histogram should be initialized")
}

func TestRecordTaskPublished(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	for i := 0; i < 5; i++ {
		collector.RecordTaskPublished()
	}
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.tasksPublished))
}

func TestRecordResultByStatus(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	collector.RecordResult("success", 0.05)
	collector.RecordResult("success", 0.10)
	collector.RecordResult("error", 0.20)
	// negative latency means publish time was unknown; only the counter moves
	collector.RecordResult("error", -1)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.results.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.results.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.resultLatency))
}

func TestMissionActiveGauge(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	collector.MissionStarted()
	collector.MissionStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.missionsActive))

	collector.MissionStopped()
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.missionsActive))
}

func TestRecordHostLocked(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	collector.RecordHostLocked()
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.hostsLocked))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.RecordTaskPublished()
		collector.RecordResult("success", 0.1)
		collector.RecordHostLocked()
		collector.MissionStarted()
		collector.MissionStopped()
	}, "a nil collector disables instrumentation without nil checks at call sites")
}
