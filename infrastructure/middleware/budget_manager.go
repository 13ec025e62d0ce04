package middleware

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ahrav/go-bracket/internal/application"
	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// Budget defines resource consumption limits for one ranking run.
type Budget struct {
	// MaxTokens limits prompt plus completion tokens across every call.
	// Zero means unlimited token usage.
	MaxTokens int64

	// MaxCalls limits the number of LLM requests.
	// Zero means unlimited API calls.
	MaxCalls int64
}

// Spend is what a run has consumed so far.
type Spend struct {
	Calls  int64
	Tokens int64
}

// BudgetObserver provides observability hooks for budget operations.
// Implementations can add tracing, metrics, and logging without
// coupling observability concerns to core budget logic.
type BudgetObserver interface {
	// PreCheck is called before the limits are checked. The returned context
	// is used for the call and handed back to PostCheck.
	PreCheck(ctx context.Context, spend Spend, budget Budget) context.Context

	// PostCheck is called after the call, or after a refusal, with the spend
	// at that point.
	PostCheck(ctx context.Context, spend Spend, budget Budget, elapsed time.Duration, err error)
}

// BudgetManager enforces one Budget across every LLM client it wraps.
// Counters are atomic so a single manager can be shared by the generator,
// scorer and comparator of a run.
type BudgetManager struct {
	budget   Budget
	observer BudgetObserver

	calls  atomic.Int64
	tokens atomic.Int64
}

// NewBudgetManager creates a BudgetManager. observer may be nil.
func NewBudgetManager(budget Budget, observer BudgetObserver) *BudgetManager {
	return &BudgetManager{budget: budget, observer: observer}
}

// BudgetFromConfig converts an application.BudgetConfig to a middleware.Budget.
func BudgetFromConfig(config application.BudgetConfig) Budget {
	return Budget{
		MaxTokens: config.MaxTokens,
		MaxCalls:  config.MaxCalls,
	}
}

// Validate rejects negative limits.
func (bm *BudgetManager) Validate() error {
	if bm.budget.MaxTokens < 0 {
		return fmt.Errorf("budget manager: max_tokens cannot be negative, got %d", bm.budget.MaxTokens)
	}
	if bm.budget.MaxCalls < 0 {
		return fmt.Errorf("budget manager: max_calls cannot be negative, got %d", bm.budget.MaxCalls)
	}
	return nil
}

// Spent returns the calls and tokens consumed so far.
func (bm *BudgetManager) Spent() Spend {
	return Spend{Calls: bm.calls.Load(), Tokens: bm.tokens.Load()}
}

// Wrap returns a client that charges every request against the budget.
func (bm *BudgetManager) Wrap(next ports.LLMClient) ports.LLMClient {
	if next == nil {
		panic("budget manager: next client is required")
	}
	return &budgetedClient{LLMClient: next, bm: bm}
}

// reserve claims one call slot and checks the token estimate. A refused
// request does not count as a call.
func (bm *BudgetManager) reserve(estimate int64) error {
	if limit := bm.budget.MaxCalls; limit > 0 {
		if n := bm.calls.Add(1); n > limit {
			bm.calls.Add(-1)
			return &domain.BudgetExceededError{LimitType: "calls", Limit: limit, Used: n - 1, Requested: 1}
		}
	} else {
		bm.calls.Add(1)
	}

	if limit := bm.budget.MaxTokens; limit > 0 {
		if used := bm.tokens.Load(); used+estimate > limit {
			bm.calls.Add(-1)
			return &domain.BudgetExceededError{LimitType: "tokens", Limit: limit, Used: used, Requested: estimate}
		}
	}
	return nil
}

// budgetedClient checks the token limit against the prompt estimate, so
// concurrent calls may overshoot MaxTokens by at most their completions.
type budgetedClient struct {
	ports.LLMClient
	bm *BudgetManager
}

// Complete implements ports.LLMClient.
func (c *budgetedClient) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	bm := c.bm
	if bm.observer != nil {
		ctx = bm.observer.PreCheck(ctx, bm.Spent(), bm.budget)
	}

	start := time.Now()
	estimate := int64(c.EstimateTokens(req.System) + c.EstimateTokens(req.Prompt))
	if err := bm.reserve(estimate); err != nil {
		if bm.observer != nil {
			bm.observer.PostCheck(ctx, bm.Spent(), bm.budget, time.Since(start), err)
		}
		return ports.Completion{}, err
	}

	out, err := c.LLMClient.Complete(ctx, req)
	bm.tokens.Add(out.Usage.Total())

	if bm.observer != nil {
		bm.observer.PostCheck(ctx, bm.Spent(), bm.budget, time.Since(start), err)
	}
	return out, err
}
