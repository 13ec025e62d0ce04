package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a request
// without calling the provider.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of a circuit breaker.
type CircuitBreakerState int

// Circuit breaker states.
const (
	// StateClosed allows all requests to pass through normally.
	StateClosed CircuitBreakerState = iota

	// StateOpen rejects all requests until the cooldown expires.
	StateOpen

	// StateHalfOpen lets a single probe through after the cooldown.
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after maxFailures consecutive failures and rejects
// requests for cooldown. Afterwards one probe is let through: success closes
// the circuit, failure opens it again. The lock is never held while the
// wrapped call runs.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CircuitBreakerState
	failures     int
	openedAt     time.Time
	probing      bool
	maxFailures  int
	cooldown     time.Duration
	now          func() time.Time
	onTransition func(ctx context.Context, from, to CircuitBreakerState)
}

// NewCircuitBreaker creates a closed circuit breaker. maxFailures below 1
// is treated as 1.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: max(maxFailures, 1),
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Call runs fn unless the circuit is open. Caller cancellation and budget
// refusals do not count as provider failures.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if !cb.allow(ctx) {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(ctx, err)
	return err
}

func (cb *CircuitBreaker) allow(ctx context.Context) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.transition(ctx, StateHalfOpen)
		cb.probing = true
		return true
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) record(ctx context.Context, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	neutral := err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrBudgetExceeded))
	if cb.state == StateHalfOpen {
		cb.probing = false
		switch {
		case neutral:
		case err == nil:
			cb.failures = 0
			cb.transition(ctx, StateClosed)
		default:
			cb.openedAt = cb.now()
			cb.transition(ctx, StateOpen)
		}
		return
	}

	switch {
	case neutral:
	case err == nil:
		cb.failures = 0
	default:
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.maxFailures {
			cb.openedAt = cb.now()
			cb.transition(ctx, StateOpen)
		}
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(ctx context.Context, to CircuitBreakerState) {
	from := cb.state
	cb.state = to
	if cb.onTransition != nil && from != to {
		cb.onTransition(ctx, from, to)
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// circuitBreakerLLM routes every request through a CircuitBreaker.
type circuitBreakerLLM struct {
	next CoreLLM
	cb   *CircuitBreaker
}

// CircuitBreakerMiddleware opens the circuit after maxFailures consecutive
// errors and rejects requests with ErrCircuitOpen for cooldown. A
// non-positive maxFailures disables the middleware. State changes are
// logged and, when metrics is non-nil, reported as a gauge.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration, metrics ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		if maxFailures <= 0 {
			return next
		}
		cb := NewCircuitBreaker(maxFailures, cooldown)
		model := next.GetModel()
		cb.onTransition = func(ctx context.Context, from, to CircuitBreakerState) {
			clog.FromContext(ctx).With("model", model).Warnf("circuit breaker %s -> %s", from, to)
			if metrics != nil {
				metrics.RecordGauge(ports.MetricCircuitState, float64(to), map[string]string{ports.LabelModel: model})
			}
		}
		return &circuitBreakerLLM{next: next, cb: cb}
	}
}

func (c *circuitBreakerLLM) Do(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	var out ports.Completion
	err := c.cb.Call(ctx, func() error {
		var err error
		out, err = c.next.Do(ctx, req)
		return err
	})
	return out, err
}

func (c *circuitBreakerLLM) GetModel() string { return c.next.GetModel() }

func (c *circuitBreakerLLM) SetModel(m string) { c.next.SetModel(m) }
