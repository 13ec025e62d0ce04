package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

var _ BudgetObserver = (*OTelBudgetObserver)(nil)

const budgetTracerName = "github.com/ahrav/go-bracket/budget"

// OTelBudgetObserver traces each budgeted call and exports the remaining
// budget. The span lives in the context returned by PreCheck, so one
// observer is safe to share between concurrent calls.
type OTelBudgetObserver struct {
	metrics ports.MetricsCollector
}

// NewOTelBudgetObserver creates a new OpenTelemetry budget observer.
// metrics may be nil.
func NewOTelBudgetObserver(metrics ports.MetricsCollector) *OTelBudgetObserver {
	return &OTelBudgetObserver{metrics: metrics}
}

// PreCheck starts a "budget.call" span and flags usage past the warning
// thresholds.
func (o *OTelBudgetObserver) PreCheck(ctx context.Context, spend Spend, budget Budget) context.Context {
	ctx, span := otel.Tracer(budgetTracerName).Start(ctx, "budget.call")
	addSpanAttributes(span, spend, budget)
	checkBudgetThresholds(span, spend, budget)
	return ctx
}

// PostCheck ends the span opened by PreCheck and updates the metrics.
func (o *OTelBudgetObserver) PostCheck(
	ctx context.Context,
	spend Spend,
	budget Budget,
	elapsed time.Duration,
	err error,
) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	addSpanAttributes(span, spend, budget)
	span.SetAttributes(attribute.Int64("budget.elapsed_ms", elapsed.Milliseconds()))

	var budgetErr *domain.BudgetExceededError
	switch {
	case errors.As(err, &budgetErr):
		span.AddEvent("budget.exceeded", trace.WithAttributes(
			attribute.String("limit_type", budgetErr.LimitType),
			attribute.Int64("limit_value", budgetErr.Limit),
			attribute.Int64("used_value", budgetErr.Used),
			attribute.Int64("requested_value", budgetErr.Requested),
		))
		span.SetStatus(codes.Error, "budget limit exceeded")
		if o.metrics != nil {
			o.metrics.RecordCounter(ports.MetricBudgetExceeded, 1, map[string]string{
				ports.LabelLimitType: budgetErr.LimitType,
			})
		}
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetStatus(codes.Ok, "")
	}

	o.updateMetrics(spend, budget)
}

func addSpanAttributes(span trace.Span, spend Spend, budget Budget) {
	span.SetAttributes(
		attribute.Int64("budget.tokens_used", spend.Tokens),
		attribute.Int64("budget.calls_made", spend.Calls),
	)
	if budget.MaxTokens > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_tokens", budget.MaxTokens),
			attribute.Int64("budget.remaining_tokens", budget.MaxTokens-spend.Tokens),
		)
	}
	if budget.MaxCalls > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_calls", budget.MaxCalls),
			attribute.Int64("budget.remaining_calls", budget.MaxCalls-spend.Calls),
		)
	}
}

// checkBudgetThresholds adds a span event when usage crosses 80% or 90% of
// a limit.
func checkBudgetThresholds(span trace.Span, spend Spend, budget Budget) {
	const warningThreshold = 0.8
	const criticalThreshold = 0.9

	for _, r := range []struct {
		kind        string
		used, limit int64
	}{
		{"tokens", spend.Tokens, budget.MaxTokens},
		{"calls", spend.Calls, budget.MaxCalls},
	} {
		if r.limit <= 0 {
			continue
		}
		pct := float64(r.used) / float64(r.limit)
		var event string
		switch {
		case pct >= criticalThreshold:
			event = "budget.threshold.critical"
		case pct >= warningThreshold:
			event = "budget.threshold.warning"
		default:
			continue
		}
		span.AddEvent(event, trace.WithAttributes(
			attribute.String("resource_type", r.kind),
			attribute.Float64("usage_percentage", pct*100),
		))
	}
}

func (o *OTelBudgetObserver) updateMetrics(spend Spend, budget Budget) {
	if o.metrics == nil {
		return
	}
	if budget.MaxTokens > 0 {
		o.metrics.RecordGauge(ports.MetricBudgetRemaining, float64(budget.MaxTokens-spend.Tokens),
			map[string]string{ports.LabelLimitType: "tokens"})
	}
	if budget.MaxCalls > 0 {
		o.metrics.RecordGauge(ports.MetricBudgetRemaining, float64(budget.MaxCalls-spend.Calls),
			map[string]string{ports.LabelLimitType: "calls"})
	}
}

// budgetLimitLabel describes which limits are active.
func budgetLimitLabel(budget Budget) string {
	switch {
	case budget.MaxTokens > 0 && budget.MaxCalls > 0:
		return "tokens_and_calls"
	case budget.MaxTokens > 0:
		return "tokens_only"
	case budget.MaxCalls > 0:
		return "calls_only"
	}
	return "unlimited"
}

// String renders the budget for logs, e.g. "calls_only(calls=10)".
func (b Budget) String() string {
	switch label := budgetLimitLabel(b); label {
	case "tokens_and_calls":
		return fmt.Sprintf("%s(calls=%d,tokens=%d)", label, b.MaxCalls, b.MaxTokens)
	case "tokens_only":
		return fmt.Sprintf("%s(tokens=%d)", label, b.MaxTokens)
	case "calls_only":
		return fmt.Sprintf("%s(calls=%d)", label, b.MaxCalls)
	default:
		return label
	}
}
