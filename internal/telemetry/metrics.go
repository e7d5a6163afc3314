// Package telemetry exposes Prometheus metrics for analysis runs and
// provider calls.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
)

const namespace = "brand_visibility"

// Metrics holds every collector on its own registry, so tests can create
// as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	runDuration   prometheus.Histogram
	activeRuns    prometheus.Gauge
	prompts       *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	providerTime  *prometheus.HistogramVec
	providerRetry *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Analysis runs started.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Analysis runs finished, by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of analysis runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Analysis runs in progress.",
		}),
		prompts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompts_processed_total",
			Help:      "Prompts processed, by outcome.",
		}, []string{"outcome"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Provider operations, by operation and result.",
		}, []string{"op", "result"}),
		providerTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider operation latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		providerRetry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Failed provider attempts, by operation.",
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runsStarted,
		m.runsFinished,
		m.runDuration,
		m.activeRuns,
		m.prompts,
		m.providerCalls,
		m.providerTime,
		m.providerRetry,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RunStarted() {
	m.runsStarted.Inc()
	m.activeRuns.Inc()
}

func (m *Metrics) PromptProcessed(fallback bool) {
	outcome := "answered"
	if fallback {
		outcome = "fallback"
	}
	m.prompts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RunFinished(status models.RunStatus, elapsed time.Duration) {
	m.activeRuns.Dec()
	m.runsFinished.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

// ObserveRetry matches common.RetryObserver
func (m *Metrics) ObserveRetry(op string, attempt int, err error) {
	m.providerRetry.WithLabelValues(op).Inc()
}

// ObserveCall matches common.CallObserver
func (m *Metrics) ObserveCall(op string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerCalls.WithLabelValues(op, result).Inc()
	m.providerTime.WithLabelValues(op).Observe(elapsed.Seconds())
}
