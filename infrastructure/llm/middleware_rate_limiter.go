package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-bracket/internal/ports"
)

// rateLimitedLLM paces requests with a token bucket shared by every client
// built from the same middleware value.
type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware allows limit requests per second with bursts of up to
// burst. A burst below 1 is raised to 1. The limiter is created once, so one
// middleware value shared across clients throttles them together.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, max(burst, 1))
	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{next: next, limiter: limiter}
	}
}

// Do waits for a token, then forwards the request.
func (r *rateLimitedLLM) Do(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return ports.Completion{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Do(ctx, req)
}

func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }

func (r *rateLimitedLLM) SetModel(m string) { r.next.SetModel(m) }
