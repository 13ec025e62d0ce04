package llm

import (
	"context"
	"time"

	"github.com/ahrav/go-bracket/internal/ports"
)

// timeoutLLM bounds each request with its own deadline.
type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware cancels a request that runs longer than timeout. Placed
// inside RetryMiddleware, every attempt gets a fresh deadline. A
// non-positive timeout disables the middleware.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		if timeout <= 0 {
			return next
		}
		return &timeoutLLM{next: next, timeout: timeout}
	}
}

func (t *timeoutLLM) Do(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Do(ctx, req)
}

func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }

func (t *timeoutLLM) SetModel(m string) { t.next.SetModel(m) }
