package judge

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/go-bracket/infrastructure/llm"
	"github.com/ahrav/go-bracket/internal/domain"
)

// RetryPolicy configures retries of transient judge failures.
type RetryPolicy struct {
	// MaxAttempts counts every call including the first. Values below 1
	// mean a single attempt.
	MaxAttempts int
	// BaseDelay is doubled after each failed attempt.
	BaseDelay time.Duration
	// MaxDelay caps the doubled delay.
	MaxDelay time.Duration
	// MaxJitter is the upper bound of random delay added to each wait.
	MaxJitter time.Duration
}

// DefaultRetryPolicy returns three attempts starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		MaxJitter:   250 * time.Millisecond,
	}
}

// delay returns the wait before attempt+1, where attempt starts at 0.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << min(attempt, 30)
	if p.MaxDelay > 0 && (d > p.MaxDelay || d < 0) {
		d = p.MaxDelay
	}
	if p.MaxJitter > 0 {
		//nolint:gosec // G404: jitter does not need a secure source.
		d += time.Duration(rand.Int64N(int64(p.MaxJitter)))
	}
	return d
}

// Retry calls fn until it succeeds, fails with an error llm.IsRetryable
// rejects, or the policy runs out of attempts. Any failure comes back as a
// *domain.JudgeError naming op and the attempts made, except malformed
// verdicts, which are returned unchanged and never retried.
func Retry[T any](ctx context.Context, p RetryPolicy, op string, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)
	var zero T
	for attempt := range attempts {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, domain.ErrMalformedVerdict) {
			return v, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = errors.Join(err, ctxErr)
		}
		if !llm.IsRetryable(err) || attempt == attempts-1 {
			return zero, &domain.JudgeError{Op: op, Attempts: attempt + 1, Err: err}
		}

		wait := p.delay(attempt)
		clog.FromContext(ctx).With("op", op).
			With("attempt", attempt+1).
			With("max_attempts", attempts).
			With("backoff", wait).
			With("error", err.Error()).
			Warn("judge call failed, retrying")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, &domain.JudgeError{Op: op, Attempts: attempt + 1, Err: errors.Join(err, ctx.Err())}
		case <-t.C:
		}
	}
	return zero, nil
}
