package middleware

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-bracket/internal/ports"
)

var _ ports.StageObserver = (*OTelStageObserver)(nil)

const stageTracerName = "github.com/ahrav/go-bracket/pipeline"

// OTelStageObserver opens one span per pipeline stage. Spans for LLM calls
// made during the stage become its children.
type OTelStageObserver struct {
	tracer trace.Tracer
}

// NewOTelStageObserver creates an observer using the global tracer provider.
func NewOTelStageObserver() *OTelStageObserver {
	return &OTelStageObserver{tracer: otel.Tracer(stageTracerName)}
}

// StageStarted implements ports.StageObserver.
func (o *OTelStageObserver) StageStarted(ctx context.Context, stage string, size int) context.Context {
	ctx, _ = o.tracer.Start(ctx, "stage."+stage, trace.WithAttributes(
		attribute.String("stage.name", stage),
		attribute.Int("stage.size", size),
	))
	return ctx
}

// StageFinished implements ports.StageObserver.
func (o *OTelStageObserver) StageFinished(ctx context.Context, _ string, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, context.Canceled):
		span.SetAttributes(attribute.Bool("stage.canceled", true))
		span.SetStatus(codes.Error, "canceled")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
