package llm

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-bracket/internal/ports"
)

type recordedMetric struct {
	kind   string
	name   string
	value  float64
	labels map[string]string
}

// recordingCollector keeps every recorded metric in call order.
type recordingCollector struct {
	mu      sync.Mutex
	records []recordedMetric
}

func newRecordingCollector() *recordingCollector { return &recordingCollector{} }

func (c *recordingCollector) add(kind, name string, v float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, recordedMetric{kind: kind, name: name, value: v, labels: labels})
}

func (c *recordingCollector) RecordLatency(op string, d time.Duration, labels map[string]string) {
	c.add("latency", op, d.Seconds(), labels)
}

func (c *recordingCollector) RecordCounter(name string, v float64, labels map[string]string) {
	c.add("counter", name, v, labels)
}

func (c *recordingCollector) RecordGauge(name string, v float64, labels map[string]string) {
	c.add("gauge", name, v, labels)
}

func (c *recordingCollector) RecordHistogram(name string, v float64, labels map[string]string) {
	c.add("histogram", name, v, labels)
}

func (c *recordingCollector) byName(name string) []recordedMetric {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []recordedMetric
	for _, r := range c.records {
		if r.name == name {
			out = append(out, r)
		}
	}
	return out
}

func (c *recordingCollector) values(name string) []float64 {
	var out []float64
	for _, r := range c.byName(name) {
		out = append(out, r.value)
	}
	return out
}

var _ ports.MetricsCollector = (*recordingCollector)(nil)

func TestMetricsMiddleware_Success(t *testing.T) {
	// Given a provider reporting 10 prompt and 20 completion tokens
	metrics := newRecordingCollector()
	core := MetricsMiddleware("openai", metrics)(NewMockCoreLLM())

	// When a request succeeds
	_, err := core.Do(context.Background(), ports.CompletionRequest{Prompt: "p"})
	require.NoError(t, err)

	// Then one request, one latency and both token counts are recorded
	requests := metrics.byName(ports.MetricLLMRequests)
	require.Len(t, requests, 1)
	assert.Equal(t, map[string]string{
		ports.LabelProvider: "openai",
		ports.LabelModel:    "test-model",
		ports.LabelStatus:   "success",
	}, requests[0].labels)
	assert.Len(t, metrics.byName(ports.MetricLLMLatency), 1)

	tokens := map[string]float64{}
	for _, r := range metrics.byName(ports.MetricLLMTokens) {
		tokens[r.labels[ports.LabelTokenType]] = r.value
	}
	assert.Equal(t, map[string]float64{"input": 10, "output": 20}, tokens)
}

func TestMetricsMiddleware_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{name: "open circuit", err: ErrCircuitOpen, status: "circuit_open"},
		{name: "deadline", err: context.DeadlineExceeded, status: "timeout"},
		{name: "canceled", err: context.Canceled, status: "canceled"},
		{
			name:   "http status",
			err:    NewProviderError("openai", ErrorTypeRateLimit, http.StatusTooManyRequests, "slow down", nil),
			status: "429",
		},
		{name: "other", err: errBoom, status: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newRecordingCollector()
			mock := NewMockCoreLLM()
			mock.Error = tt.err
			core := MetricsMiddleware("openai", metrics)(mock)

			_, err := core.Do(context.Background(), ports.CompletionRequest{Model: "override"})
			require.Error(t, err)

			requests := metrics.byName(ports.MetricLLMRequests)
			require.Len(t, requests, 1)
			assert.Equal(t, tt.status, requests[0].labels[ports.LabelStatus])
			assert.Equal(t, "override", requests[0].labels[ports.LabelModel])
			assert.Empty(t, metrics.byName(ports.MetricLLMTokens), "no tokens on failure")
		})
	}
}

func TestMetricsMiddleware_NilCollector(t *testing.T) {
	mock := NewMockCoreLLM()
	core := MetricsMiddleware("openai", nil)(mock)
	assert.Same(t, mock, core)
}
