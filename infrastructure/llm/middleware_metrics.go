package llm

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ahrav/go-bracket/internal/ports"
)

// metricsLLM records request counts, latency and token usage per call.
type metricsLLM struct {
	next      CoreLLM
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware records every request under provider's name. A nil
// collector disables the middleware.
func MetricsMiddleware(provider string, collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		if collector == nil {
			return next
		}
		return &metricsLLM{next: next, provider: provider, collector: collector}
	}
}

// Do forwards the request and records its outcome.
func (m *metricsLLM) Do(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	start := time.Now()
	c, err := m.next.Do(ctx, req)

	model := req.Model
	if model == "" {
		model = m.next.GetModel()
	}
	labels := map[string]string{
		ports.LabelProvider: m.provider,
		ports.LabelModel:    model,
		ports.LabelStatus:   requestStatus(ctx, err),
	}
	m.collector.RecordHistogram(ports.MetricLLMLatency, time.Since(start).Seconds(), labels)
	m.collector.RecordCounter(ports.MetricLLMRequests, 1, labels)

	if err == nil {
		for tokenType, n := range map[string]int64{
			"input":  c.Usage.PromptTokens,
			"output": c.Usage.CompletionTokens,
		} {
			m.collector.RecordCounter(ports.MetricLLMTokens, float64(n), map[string]string{
				ports.LabelProvider:  m.provider,
				ports.LabelModel:     model,
				ports.LabelTokenType: tokenType,
			})
		}
	}
	return c, err
}

// requestStatus classifies a finished request for the status label.
func requestStatus(ctx context.Context, err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded), ctx.Err() == context.DeadlineExceeded:
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &pe) && pe.StatusCode > 0:
		return strconv.Itoa(pe.StatusCode)
	default:
		return "error"
	}
}

func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
