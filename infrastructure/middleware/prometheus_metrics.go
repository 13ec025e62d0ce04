// Package middleware provides cross-cutting concerns for the ranking engine:
// metrics export, budget enforcement, stage tracing and position-bias
// mitigation. Each type decorates a port without changing its contract.
package middleware

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-bracket/internal/ports"
)

const namespace = "bracket"

// PrometheusMetrics implements ports.MetricsCollector on a private
// Prometheus registry. Metric names known to the engine get their own
// vectors with fixed labels; anything else lands in generic vectors keyed by
// a "metric" label.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	runnerTasks     *prometheus.CounterVec
	matches         *prometheus.CounterVec
	scoreFailures   prometheus.Counter
	candidateScore  prometheus.Histogram
	stageDuration   *prometheus.HistogramVec
	llmRequests     *prometheus.CounterVec
	llmTokens       *prometheus.CounterVec
	llmLatency      *prometheus.HistogramVec
	budgetExceeded  *prometheus.CounterVec
	budgetRemaining *prometheus.GaugeVec
	circuitState    *prometheus.GaugeVec

	otherCounters   *prometheus.CounterVec
	otherGauges     *prometheus.GaugeVec
	otherHistograms *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors and registers them, together
// with the Go runtime and process collectors, on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	pm := &PrometheusMetrics{
		registry: reg,
		runnerTasks: f.NewCounterVec(counterOpts(ports.MetricRunnerTasks, "Finished runner tasks."),
			[]string{ports.LabelStage, ports.LabelStatus}),
		matches: f.NewCounterVec(counterOpts(ports.MetricMatches, "Resolved pairwise matches by where the verdict came from."),
			[]string{ports.LabelStage, ports.LabelSource}),
		scoreFailures: f.NewCounter(counterOpts(ports.MetricScoreFailures, "Candidates whose score defaulted to zero.")),
		candidateScore: f.NewHistogram(histogramOpts(ports.MetricCandidateScore,
			"Scalar score of each scored candidate.", prometheus.LinearBuckets(1, 1, 10))),
		stageDuration: f.NewHistogramVec(histogramOpts(ports.MetricStageDuration+"_duration_seconds",
			"Wall time of one runner batch.", prometheus.DefBuckets),
			[]string{ports.LabelStage}),
		llmRequests: f.NewCounterVec(counterOpts(ports.MetricLLMRequests, "Provider requests."),
			[]string{ports.LabelProvider, ports.LabelModel, ports.LabelStatus}),
		llmTokens: f.NewCounterVec(counterOpts(ports.MetricLLMTokens, "Tokens reported by providers."),
			[]string{ports.LabelProvider, ports.LabelModel, ports.LabelTokenType}),
		llmLatency: f.NewHistogramVec(histogramOpts(ports.MetricLLMLatency,
			"Provider request latency.", prometheus.ExponentialBuckets(0.05, 2, 10)),
			[]string{ports.LabelProvider, ports.LabelModel, ports.LabelStatus}),
		budgetExceeded: f.NewCounterVec(counterOpts(ports.MetricBudgetExceeded, "Requests refused by the run budget."),
			[]string{ports.LabelLimitType}),
		budgetRemaining: f.NewGaugeVec(gaugeOpts(ports.MetricBudgetRemaining, "Remaining run budget."),
			[]string{ports.LabelLimitType}),
		circuitState: f.NewGaugeVec(gaugeOpts(ports.MetricCircuitState, "Circuit breaker state (0 closed, 1 open, 2 half open)."),
			[]string{ports.LabelModel}),
		otherCounters: f.NewCounterVec(counterOpts("operations_total", "Counters without a dedicated series."),
			[]string{"metric"}),
		otherGauges: f.NewGaugeVec(gaugeOpts("system_state", "Gauges without a dedicated series."),
			[]string{"metric"}),
		otherHistograms: f.NewHistogramVec(histogramOpts("observations",
			"Histograms and latencies without a dedicated series.", prometheus.DefBuckets),
			[]string{"metric"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return pm
}

// Registry exposes the underlying registry.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry { return pm.registry }

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{Registry: pm.registry})
}

// RecordLatency implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	switch operation {
	case ports.MetricStageDuration:
		pm.stageDuration.WithLabelValues(labels[ports.LabelStage]).Observe(duration.Seconds())
	default:
		pm.otherHistograms.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordCounter implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	if value < 0 {
		return
	}
	switch metric {
	case ports.MetricRunnerTasks:
		pm.runnerTasks.WithLabelValues(values(labels, ports.LabelStage, ports.LabelStatus)...).Add(value)
	case ports.MetricMatches:
		pm.matches.WithLabelValues(values(labels, ports.LabelStage, ports.LabelSource)...).Add(value)
	case ports.MetricScoreFailures:
		pm.scoreFailures.Add(value)
	case ports.MetricLLMRequests:
		pm.llmRequests.WithLabelValues(values(labels, ports.LabelProvider, ports.LabelModel, ports.LabelStatus)...).Add(value)
	case ports.MetricLLMTokens:
		pm.llmTokens.WithLabelValues(values(labels, ports.LabelProvider, ports.LabelModel, ports.LabelTokenType)...).Add(value)
	case ports.MetricBudgetExceeded:
		pm.budgetExceeded.WithLabelValues(labels[ports.LabelLimitType]).Add(value)
	default:
		pm.otherCounters.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricBudgetRemaining:
		pm.budgetRemaining.WithLabelValues(labels[ports.LabelLimitType]).Set(value)
	case ports.MetricCircuitState:
		pm.circuitState.WithLabelValues(labels[ports.LabelModel]).Set(value)
	default:
		pm.otherGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricCandidateScore:
		pm.candidateScore.Observe(value)
	case ports.MetricLLMLatency:
		pm.llmLatency.WithLabelValues(values(labels, ports.LabelProvider, ports.LabelModel, ports.LabelStatus)...).Observe(value)
	default:
		pm.otherHistograms.WithLabelValues(metric).Observe(value)
	}
}

// values picks label values in key order. Missing keys become "".
func values(labels map[string]string, keys ...string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = labels[k]
	}
	return out
}

func counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}
}

func gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}
}

func histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
