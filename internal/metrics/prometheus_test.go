package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ViaSnake/mcaselector/internal/metrics"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	m.RecordContainer("done")
	m.RecordContainer("done")
	m.RecordContainer("failed")
	m.RecordChunks(10, 4, 3, 1)
	m.AddBytesRead(4096)
	m.AddBytesWritten(8192)
	m.SetResident(3)
	m.ObserveStage("read", 0.01)
	m.UpdateSystemStats(42.5, 1024, 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ContainersTotal.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContainersTotal.WithLabelValues("failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ChunksTotal.WithLabelValues("selected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChunksTotal.WithLabelValues("error")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.BytesReadTotal))
	assert.Equal(t, 8192.0, testutil.ToFloat64(m.BytesWrittenTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ResidentContainers))
	assert.Equal(t, 42.5, testutil.ToFloat64(m.DiskUsagePercent))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RecordContainer("done")
		m.RecordChunks(1, 1, 1, 1)
		m.ObserveStage("write", 1)
		m.SetResident(1)
		m.AddBytesRead(1)
		m.AddBytesWritten(1)
		m.UpdateSystemStats(1, 1, 1)
	})
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.NewMetrics(prometheus.NewRegistry())
		metrics.NewMetrics(prometheus.NewRegistry())
	})
}
