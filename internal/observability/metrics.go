// Package observability exposes process-wide Prometheus metrics for the
// agent runtime.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	instructionTotal    *prometheus.CounterVec
	instructionDuration *prometheus.HistogramVec
	turnsPerInstruction prometheus.Histogram

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec

	providerCallTotal    *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec

	activeSessions       prometheus.Gauge
	sessionsCreatedTotal prometheus.Counter
	sessionsEvictedTotal prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			instructionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "instruction_total",
					Help: "Total processed instructions by mode and status.",
				},
				[]string{"mode", "status"},
			),
			instructionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "instruction_duration_seconds",
					Help:    "Instruction processing duration in seconds by mode.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"mode"},
			),
			turnsPerInstruction: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "instruction_turns",
					Help:    "Reason-Act-Observe turns consumed per instruction.",
					Buckets: []float64{0, 1, 2, 3, 5, 8, 10, 15},
				},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_errors_total",
					Help: "Total tool execution errors by tool.",
				},
				[]string{"tool"},
			),
			providerCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "provider_call_total",
					Help: "Total model provider calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			providerCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "provider_call_duration_seconds",
					Help:    "Model provider call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current live session count.",
				},
			),
			sessionsCreatedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_created_total",
					Help: "Total sessions created.",
				},
			),
			sessionsEvictedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_evicted_total",
					Help: "Total sessions evicted by the idle sweeper.",
				},
			),
		}

		prometheus.MustRegister(
			m.instructionTotal,
			m.instructionDuration,
			m.turnsPerInstruction,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.providerCallTotal,
			m.providerCallDuration,
			m.activeSessions,
			m.sessionsCreatedTotal,
			m.sessionsEvictedTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is
// called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordInstruction records one processed instruction.
func RecordInstruction(mode, status string, duration time.Duration, turns int) {
	m := getMetrics()
	m.instructionTotal.WithLabelValues(mode, status).Inc()
	m.instructionDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.turnsPerInstruction.Observe(float64(turns))
}

// RecordToolExecution records one tool dispatch.
func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}

// RecordProviderCall records one model provider call.
func RecordProviderCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.providerCallTotal.WithLabelValues(provider, status).Inc()
	m.providerCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// SetActiveSessions updates the live session gauge.
func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

// RecordSessionCreated increments the session creation counter.
func RecordSessionCreated() {
	getMetrics().sessionsCreatedTotal.Inc()
}

// RecordSessionEvicted increments the idle eviction counter.
func RecordSessionEvicted() {
	getMetrics().sessionsEvictedTotal.Inc()
}
