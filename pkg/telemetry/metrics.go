package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the orchestration core.
// A disabled Metrics instance is a safe no-op.
type Metrics struct {
	config MetricsConfig

	// Dispatch metrics
	dispatchesTotal *prometheus.CounterVec

	// Execution metrics
	executionsStarted   prometheus.Counter
	executionsCompleted *prometheus.CounterVec
	executionDuration   *prometheus.HistogramVec
	activeExecutions    prometheus.Gauge

	// Callback metrics
	callbacksDelivered *prometheus.CounterVec
	callbackFailures   prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		dispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Total number of lifecycle requests dispatched",
			},
			[]string{"request_type", "build_status"},
		),

		executionsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_started_total",
				Help:      "Total number of build executions started",
			},
		),
		executionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_completed_total",
				Help:      "Total number of build executions completed",
			},
			[]string{"build_status"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Duration of build executions in seconds",
				Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 2700, 3600, 5400},
			},
			[]string{"build_status"},
		),
		activeExecutions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_executions",
				Help:      "Number of executions currently in flight",
			},
		),

		callbacksDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callbacks_delivered_total",
				Help:      "Total number of completion callbacks delivered",
			},
			[]string{"status"},
		),
		callbackFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callback_failures_total",
				Help:      "Total number of completion callbacks that could not be delivered",
			},
		),
	}

	registry.MustRegister(
		m.dispatchesTotal,
		m.executionsStarted,
		m.executionsCompleted,
		m.executionDuration,
		m.activeExecutions,
		m.callbacksDelivered,
		m.callbackFailures,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordDispatch records a dispatched lifecycle request and its outcome.
func (m *Metrics) RecordDispatch(requestType, buildStatus string) {
	if m.dispatchesTotal == nil {
		return
	}
	m.dispatchesTotal.WithLabelValues(requestType, buildStatus).Inc()
}

// RecordExecutionStarted records the start of a build execution.
func (m *Metrics) RecordExecutionStarted() {
	if m.executionsStarted == nil {
		return
	}
	m.executionsStarted.Inc()
	m.activeExecutions.Inc()
}

// RecordExecutionCompleted records a finished build execution.
func (m *Metrics) RecordExecutionCompleted(buildStatus string, seconds float64) {
	if m.executionsCompleted == nil {
		return
	}
	m.executionsCompleted.WithLabelValues(buildStatus).Inc()
	m.executionDuration.WithLabelValues(buildStatus).Observe(seconds)
	m.activeExecutions.Dec()
}

// RecordCallback records a delivered completion callback.
func (m *Metrics) RecordCallback(status string) {
	if m.callbacksDelivered == nil {
		return
	}
	m.callbacksDelivered.WithLabelValues(status).Inc()
}

// RecordCallbackFailure records a callback that could not be delivered.
func (m *Metrics) RecordCallbackFailure() {
	if m.callbackFailures == nil {
		return
	}
	m.callbackFailures.Inc()
}
