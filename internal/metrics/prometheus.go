package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mcaselector"

// Metrics holds all Prometheus metrics of a batch run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Container metrics
	ContainersTotal    *prometheus.CounterVec
	ResidentContainers prometheus.Gauge
	StageDuration      *prometheus.HistogramVec

	// Chunk metrics
	ChunksTotal *prometheus.CounterVec

	// IO metrics
	BytesReadTotal    prometheus.Counter
	BytesWrittenTotal prometheus.Counter

	// System metrics
	DiskUsagePercent prometheus.Gauge
	MemoryUsageBytes prometheus.Gauge
	GoroutinesTotal  prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ContainersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "containers_total",
			Help:      "Total number of containers by final status",
		}, []string{"status"}),
		ResidentContainers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "resident_containers",
			Help:      "Containers currently held in memory",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Histogram of per-container stage durations",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
		ChunksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "chunks_total",
			Help:      "Total number of chunks by outcome",
		}, []string{"outcome"}),
		BytesReadTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "io",
			Name:      "bytes_read_total",
			Help:      "Total bytes of region files read",
		}),
		BytesWrittenTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "io",
			Name:      "bytes_written_total",
			Help:      "Total bytes of region files written",
		}),
		DiskUsagePercent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "disk_usage_percent",
			Help:      "Disk usage percentage of the world directory",
		}),
		MemoryUsageBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "memory_usage_bytes",
			Help:      "Current heap allocation in bytes",
		}),
		GoroutinesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "goroutines_total",
			Help:      "Current number of goroutines",
		}),
	}
}

// RecordContainer counts a container reaching a terminal status
func (m *Metrics) RecordContainer(status string) {
	if m == nil {
		return
	}
	m.ContainersTotal.WithLabelValues(status).Inc()
}

// RecordChunks adds per-chunk outcome counts
func (m *Metrics) RecordChunks(scanned, selected, edited, errored int) {
	if m == nil {
		return
	}
	m.ChunksTotal.WithLabelValues("scanned").Add(float64(scanned))
	m.ChunksTotal.WithLabelValues("selected").Add(float64(selected))
	m.ChunksTotal.WithLabelValues("edited").Add(float64(edited))
	m.ChunksTotal.WithLabelValues("error").Add(float64(errored))
}

// ObserveStage records how long a container spent in a stage
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// SetResident updates the resident container gauge
func (m *Metrics) SetResident(n int) {
	if m == nil {
		return
	}
	m.ResidentContainers.Set(float64(n))
}

// AddBytesRead records bytes read from disk
func (m *Metrics) AddBytesRead(n int64) {
	if m == nil {
		return
	}
	m.BytesReadTotal.Add(float64(n))
}

// AddBytesWritten records bytes written to disk
func (m *Metrics) AddBytesWritten(n int64) {
	if m == nil {
		return
	}
	m.BytesWrittenTotal.Add(float64(n))
}

// UpdateSystemStats updates system-level statistics
func (m *Metrics) UpdateSystemStats(diskUsagePercent float64, memoryUsage int64, goroutines int) {
	if m == nil {
		return
	}
	m.DiskUsagePercent.Set(diskUsagePercent)
	m.MemoryUsageBytes.Set(float64(memoryUsage))
	m.GoroutinesTotal.Set(float64(goroutines))
}
