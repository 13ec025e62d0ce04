package middleware

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

var _ ports.Comparator = (*PositionSwapComparator)(nil)

const positionSwapTracerName = "github.com/ahrav/go-bracket/position-swap"

// PositionSwapComparator mitigates positional bias by asking the wrapped
// comparator twice, once in each presentation order. When both answers name
// the same candidate that verdict stands; otherwise the result is FirstWins.
// The decorator is stateless and safe for concurrent use.
type PositionSwapComparator struct {
	next ports.Comparator
}

// NewPositionSwapComparator wraps next.
func NewPositionSwapComparator(next ports.Comparator) *PositionSwapComparator {
	if next == nil {
		panic("position swap comparator: next comparator is required")
	}
	return &PositionSwapComparator{next: next}
}

// Compare implements ports.Comparator. Usage of both calls is summed. An
// error from either call is returned with FirstWins.
func (p *PositionSwapComparator) Compare(
	ctx context.Context,
	instruction string,
	criteria []string,
	a, b string,
) (domain.Verdict, domain.Usage, error) {
	tracer := otel.Tracer(positionSwapTracerName)
	ctx, span := tracer.Start(ctx, "PositionSwap.Compare")
	defer span.End()

	forward, usage, err := p.run(ctx, tracer, 0, instruction, criteria, a, b)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.FirstWins, usage, fmt.Errorf("forward comparison: %w", err)
	}

	reversed, u2, err := p.run(ctx, tracer, 1, instruction, criteria, b, a)
	usage = usage.Add(u2)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.FirstWins, usage, fmt.Errorf("reversed comparison: %w", err)
	}

	// reversed is relative to (b, a), so flip it back before comparing.
	agree := forward == reversed.Flip()
	span.SetAttributes(
		attribute.String("verdict.forward", forward.String()),
		attribute.String("verdict.reversed", reversed.String()),
		attribute.Bool("verdict.consistent", agree),
	)
	span.SetStatus(codes.Ok, "")

	if !agree {
		clog.FromContext(ctx).With("forward", forward.String()).
			With("reversed", reversed.String()).
			Info("position swap verdicts disagree, defaulting to first")
		return domain.FirstWins, usage, nil
	}
	return forward, usage, nil
}

func (p *PositionSwapComparator) run(
	ctx context.Context,
	tracer trace.Tracer,
	runIndex int,
	instruction string,
	criteria []string,
	first, second string,
) (domain.Verdict, domain.Usage, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("PositionSwap.Run%d", runIndex),
		trace.WithAttributes(attribute.Int("run_index", runIndex)))
	defer span.End()

	v, usage, err := p.next.Compare(ctx, instruction, criteria, first, second)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return v, usage, err
	}
	span.SetAttributes(attribute.String("verdict", v.String()))
	return v, usage, nil
}
