package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-bracket/internal/ports"
)

// tracerName identifies spans emitted by this package.
const tracerName = "github.com/ahrav/go-bracket/infrastructure/llm"

// tracedLLM wraps each request in an OpenTelemetry span.
type tracedLLM struct {
	next     CoreLLM
	provider string
	tracer   trace.Tracer
}

// TracingMiddleware emits an "llm.request" span per call using the global
// tracer provider. Without a configured provider the spans are no-ops.
func TracingMiddleware(provider string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{next: next, provider: provider, tracer: otel.Tracer(tracerName)}
	}
}

func (t *tracedLLM) Do(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	model := req.Model
	if model == "" {
		model = t.next.GetModel()
	}
	ctx, span := t.tracer.Start(ctx, "llm.request", trace.WithAttributes(
		attribute.String("llm.provider", t.provider),
		attribute.String("llm.model", model),
		attribute.Int("llm.prompt.length", len(req.Prompt)),
	))
	defer span.End()

	c, err := t.next.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return c, err
	}

	span.SetAttributes(
		attribute.Int64("llm.tokens.input", c.Usage.PromptTokens),
		attribute.Int64("llm.tokens.output", c.Usage.CompletionTokens),
	)
	span.SetStatus(codes.Ok, "")
	return c, nil
}

func (t *tracedLLM) GetModel() string { return t.next.GetModel() }

func (t *tracedLLM) SetModel(m string) { t.next.SetModel(m) }
