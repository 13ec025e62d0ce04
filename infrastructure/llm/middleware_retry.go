package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/go-bracket/internal/ports"
)

// retryLLM retries transient provider failures with exponential backoff.
type retryLLM struct {
	next        CoreLLM
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// RetryMiddleware retries requests that fail with a retryable error (see
// IsRetryable). maxAttempts counts the first call; values below 1 are
// treated as 1.
func RetryMiddleware(maxAttempts int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:        next,
			maxAttempts: max(1, maxAttempts),
			baseDelay:   baseDelay,
			maxDelay:    maxDelay,
		}
	}
}

// Do calls next until it succeeds, fails permanently or attempts run out.
func (r *retryLLM) Do(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	var lastErr error
	for attempt := range r.maxAttempts {
		c, err := r.next.Do(ctx, req)
		if err == nil {
			return c, nil
		}
		lastErr = err

		if !IsRetryable(err) || ctx.Err() != nil || attempt == r.maxAttempts-1 {
			break
		}

		delay := backoff(attempt, r.baseDelay, r.maxDelay)
		clog.FromContext(ctx).With("attempt", attempt+1).With("delay", delay).With("error", err).
			Warnf("llm request to %s failed, retrying", r.next.GetModel())

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ports.Completion{}, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-t.C:
		}
	}
	return ports.Completion{}, lastErr
}

// backoff returns base*2^attempt with up to 25% jitter either way, capped
// at maxDelay.
func backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	attempt = min(max(attempt, 0), 30)
	delay := base * time.Duration(1<<attempt)
	if quarter := int64(delay / 4); quarter > 0 {
		//nolint:gosec // G404: math/rand is acceptable for retry jitter timing.
		delay += time.Duration(rand.Int64N(2*quarter) - quarter)
	}
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return max(delay, 0)
}

func (r *retryLLM) GetModel() string { return r.next.GetModel() }

func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
