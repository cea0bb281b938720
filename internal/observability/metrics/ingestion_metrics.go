package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	IngestionStatusProcessed = "processed"
	IngestionStatusFailed    = "failed"
	IngestionStatusSkipped   = "skipped"
)

// IngestionMetrics captures dataset ingestion throughput and failure signals.
type IngestionMetrics struct {
	runs        *prometheus.CounterVec
	records     *prometheus.CounterVec
	rowWarnings *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	queueDepth  prometheus.Gauge
	dropped     prometheus.Counter
}

var (
	ingestionMetricsOnce sync.Once
	ingestionMetrics     *IngestionMetrics
)

// Ingestion returns the singleton ingestion metrics registry.
func Ingestion() *IngestionMetrics {
	return IngestionWithConfig(Config{})
}

// IngestionWithConfig returns the singleton ingestion metrics registry using config labels.
func IngestionWithConfig(cfg Config) *IngestionMetrics {
	ingestionMetricsOnce.Do(func() {
		ingestionMetrics = newIngestionMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ingestionMetrics
}

// ResetIngestionMetricsForTest resets the ingestion metrics singleton for tests.
func ResetIngestionMetricsForTest() {
	ingestionMetricsOnce = sync.Once{}
	ingestionMetrics = nil
}

// NewIngestionMetricsWithRegisterer builds an unshared registry, mostly for tests.
func NewIngestionMetricsWithRegisterer(registerer prometheus.Registerer, cfg Config) *IngestionMetrics {
	return newIngestionMetrics(registerer, cfg)
}

func newIngestionMetrics(registerer prometheus.Registerer, cfg Config) *IngestionMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "oceandata"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "oceandata_ingestion_runs_total",
		Help:        "Dataset ingestion runs by format and terminal status.",
		ConstLabels: constLabels,
	}, []string{"format", "status"})
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "oceandata_ingestion_records_total",
		Help:        "Observation records persisted by data source.",
		ConstLabels: constLabels,
	}, []string{"source"})
	rowWarnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "oceandata_ingestion_row_warnings_total",
		Help:        "Malformed rows skipped during parsing.",
		ConstLabels: constLabels,
	}, []string{"format"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "oceandata_ingestion_duration_seconds",
		Help:        "Wall time from claim to terminal status for one dataset.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"format"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "oceandata_ingestion_queue_depth",
		Help:        "Ingestion jobs waiting for a worker.",
		ConstLabels: constLabels,
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "oceandata_ingestion_jobs_dropped_total",
		Help:        "Jobs rejected because the queue was full; recovery picks them up later.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(runs, records, rowWarnings, duration, queueDepth, dropped)

	return &IngestionMetrics{
		runs:        runs,
		records:     records,
		rowWarnings: rowWarnings,
		duration:    duration,
		queueDepth:  queueDepth,
		dropped:     dropped,
	}
}

func (m *IngestionMetrics) RecordRun(format, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	format = normalizeLabel(format)
	m.runs.WithLabelValues(format, normalizeLabel(status)).Inc()
	if status != IngestionStatusSkipped {
		m.duration.WithLabelValues(format).Observe(elapsed.Seconds())
	}
}

func (m *IngestionMetrics) RecordRecords(source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.records.WithLabelValues(normalizeLabel(source)).Add(float64(count))
}

func (m *IngestionMetrics) RecordRowWarnings(format string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.rowWarnings.WithLabelValues(normalizeLabel(format)).Add(float64(count))
}

func (m *IngestionMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *IngestionMetrics) RecordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
