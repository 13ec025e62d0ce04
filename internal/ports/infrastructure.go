package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-bracket/internal/domain"
)

// CompletionRequest is a single prompt sent to a language model.
type CompletionRequest struct {
	// Prompt is the user message.
	Prompt string

	// System is an optional system instruction.
	System string

	// Model overrides the client's configured model when non-empty.
	Model string

	// Temperature is left to the provider default when nil.
	Temperature *float64

	// MaxTokens caps the completion length. Zero uses the provider default.
	MaxTokens int
}

// Completion is the model's answer to a CompletionRequest.
type Completion struct {
	Text  string
	Model string
	Usage domain.Usage
}

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// The implementation should handle rate limiting, retries, and timeouts.
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) int

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// MatchCache memoizes pairwise verdicts for one ranking invocation.
// Verdicts are stored oriented to the key (Low presented first).
// Implementations must be safe for concurrent use; Store is last-write-wins.
type MatchCache interface {
	Lookup(key domain.MatchKey) (domain.Verdict, bool)
	Store(key domain.MatchKey, v domain.Verdict)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like cache hits/misses, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// StageObserver is notified when pipeline stages start and finish.
type StageObserver interface {
	// StageStarted returns a context to use for the stage's work.
	StageStarted(ctx context.Context, stage string, size int) context.Context

	// StageFinished closes the stage opened on ctx. err is nil on success.
	StageFinished(ctx context.Context, stage string, err error)
}

// NopMetrics discards all metrics.
type NopMetrics struct{}

func (NopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (NopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (NopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (NopMetrics) RecordHistogram(string, float64, map[string]string)     {}

// NopStageObserver ignores stage notifications.
type NopStageObserver struct{}

func (NopStageObserver) StageStarted(ctx context.Context, _ string, _ int) context.Context {
	return ctx
}
func (NopStageObserver) StageFinished(context.Context, string, error) {}
