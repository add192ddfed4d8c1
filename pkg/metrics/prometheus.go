// Package metrics provides Prometheus metrics for the churn scoring service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every metric the service exports.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Scoring
	predictions      *prometheus.CounterVec
	scoringLatency   *prometheus.HistogramVec
	scoringErrors    *prometheus.CounterVec
	unseenCategories *prometheus.CounterVec

	// Model lifecycle
	modelLoaded prometheus.Gauge
	modelInfo   *prometheus.GaugeVec

	// Batch runs
	batchRuns        *prometheus.CounterVec
	batchDuration    prometheus.Histogram
	batchRowsScored  prometheus.Gauge
	batchTargets     prometheus.Gauge
	batchLastSuccess prometheus.Gauge

	// Quality gate
	qualityChecks *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level recorders

// Custom registry to keep exposition limited to what we register.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared registry for /metrics

func init() { //nolint:gochecknoinits // global metrics setup
	customRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "churnscore",
		subsystem:      "",
		latencyBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "predictions_total",
		Help:      "Scoring results produced, by mode, policy and recommended action",
	}, []string{"mode", "policy", "action"})

	m.scoringLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_latency_milliseconds",
		Help:      "Align + score + decide latency per record in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"mode"})

	m.scoringErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_errors_total",
		Help:      "Scoring failures by mode and error kind",
	}, []string{"mode", "kind"})

	m.unseenCategories = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "alignment_unseen_categories_total",
		Help:      "Categorical values absent from the trained indicator set, by field",
	}, []string{"field"})

	m.modelLoaded = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "model_loaded",
		Help:      "1 when a model is loaded and scoring is allowed",
	})

	m.modelInfo = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "model_info",
		Help:      "Loaded model name and version",
	}, []string{"name", "version"})

	m.batchRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_runs_total",
		Help:      "Batch scoring runs by outcome",
	}, []string{"status"})

	m.batchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_duration_seconds",
		Help:      "Wall time of batch scoring runs",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	m.batchRowsScored = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_rows_scored",
		Help:      "Users scored by the last successful batch run",
	})

	m.batchTargets = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_retention_targets",
		Help:      "Retention targets written by the last successful batch run",
	})

	m.batchLastSuccess = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_last_success_timestamp_seconds",
		Help:      "Unix time of the last successful batch run",
	})

	m.qualityChecks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "quality_checks_total",
		Help:      "Data quality check outcomes by check name",
	}, []string{"check", "status"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.httpErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_errors_total",
		Help:      "HTTP error responses by endpoint, error type and severity",
	}, []string{"endpoint", "error_type", "severity"})
}

// RecordPrediction counts one scoring result.
func RecordPrediction(mode, policy, action string) {
	globalManager.predictions.WithLabelValues(mode, policy, action).Inc()
}

// RecordScoringLatency records per-record scoring latency.
func RecordScoringLatency(mode string, d time.Duration) {
	globalManager.scoringLatency.WithLabelValues(mode).Observe(float64(d.Microseconds()) / 1000)
}

// RecordScoringError counts a scoring failure of the given kind.
func RecordScoringError(mode, kind string) {
	globalManager.scoringErrors.WithLabelValues(mode, kind).Inc()
}

// RecordUnseenCategory counts a categorical value the model never saw.
func RecordUnseenCategory(field string) {
	globalManager.unseenCategories.WithLabelValues(field).Inc()
}

// SetModelLoaded publishes the loaded model identity.
func SetModelLoaded(name, version string) {
	globalManager.modelInfo.Reset()
	globalManager.modelInfo.WithLabelValues(name, version).Set(1)
	globalManager.modelLoaded.Set(1)
}

// RecordBatchRun records the outcome of a batch run.
func RecordBatchRun(status string, d time.Duration) {
	globalManager.batchRuns.WithLabelValues(status).Inc()
	globalManager.batchDuration.Observe(d.Seconds())
}

// RecordBatchSuccess publishes the size of a committed batch run.
func RecordBatchSuccess(scored, targets int, at time.Time) {
	globalManager.batchRowsScored.Set(float64(scored))
	globalManager.batchTargets.Set(float64(targets))
	globalManager.batchLastSuccess.Set(float64(at.Unix()))
}

// RecordQualityCheck counts a data quality check outcome.
func RecordQualityCheck(check string, passed bool) {
	status := "passed"
	if !passed {
		status = "failed"
	}
	globalManager.qualityChecks.WithLabelValues(check, status).Inc()
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError counts an HTTP error response.
func RecordHTTPError(endpoint, errorType, severity string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType, severity).Inc()
}

// GetRegistry returns the registry served on /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
