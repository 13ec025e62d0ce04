package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-bracket/internal/ports"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddleware_Success(t *testing.T) {
	rec := installRecorder(t)
	core := TracingMiddleware("anthropic")(NewMockCoreLLM())

	_, err := core.Do(context.Background(), ports.CompletionRequest{Prompt: "hello"})
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.request", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "anthropic", attrs["llm.provider"].AsString())
	assert.Equal(t, "test-model", attrs["llm.model"].AsString())
	assert.Equal(t, int64(5), attrs["llm.prompt.length"].AsInt64())
	assert.Equal(t, int64(10), attrs["llm.tokens.input"].AsInt64())
	assert.Equal(t, int64(20), attrs["llm.tokens.output"].AsInt64())
}

func TestTracingMiddleware_Error(t *testing.T) {
	rec := installRecorder(t)
	mock := NewMockCoreLLM()
	mock.Error = errBoom
	core := TracingMiddleware("openai")(mock)

	_, err := core.Do(context.Background(), ports.CompletionRequest{})
	assert.ErrorIs(t, err, errBoom)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1, "error recorded as span event")
}

func TestTracingMiddleware_PropagatesSpanContext(t *testing.T) {
	installRecorder(t)
	mock := NewMockCoreLLM()
	core := TracingMiddleware("openai")(mock)

	_, err := core.Do(context.Background(), ports.CompletionRequest{})
	require.NoError(t, err)

	require.Len(t, mock.Contexts, 1)
	assert.True(t, spanContextValid(mock.Contexts[0]))
}

func spanContextValid(ctx context.Context) bool {
	return trace.SpanContextFromContext(ctx).IsValid()
}
