package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// fakeClock is a manually advanced clock for circuit breaker tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(maxFailures int, cooldown time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(maxFailures, cooldown)
	cb.now = clock.Now
	return cb, clock
}

var errBoom = errors.New("boom")

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	cb, _ := newTestBreaker(3, time.Minute)

	// Given two failures separated by a success
	assert.ErrorIs(t, cb.Call(ctx, fail), errBoom)
	assert.ErrorIs(t, cb.Call(ctx, fail), errBoom)
	require.NoError(t, cb.Call(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State(), "success resets the failure count")

	// When three failures happen in a row
	for range 3 {
		assert.ErrorIs(t, cb.Call(ctx, fail), errBoom)
	}

	// Then the circuit opens and rejects without calling fn
	assert.Equal(t, StateOpen, cb.State())
	called := false
	err := cb.Call(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name      string
		probe     func() error
		wantState CircuitBreakerState
	}{
		{name: "probe success closes", probe: succeed, wantState: StateClosed},
		{name: "probe failure reopens", probe: fail, wantState: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cb, clock := newTestBreaker(1, 10*time.Second)
			_ = cb.Call(ctx, fail)
			require.Equal(t, StateOpen, cb.State())

			// Given the cooldown has not elapsed
			clock.Advance(9 * time.Second)
			assert.ErrorIs(t, cb.Call(ctx, succeed), ErrCircuitOpen)

			// When it elapses the next call is the probe
			clock.Advance(time.Second)
			_ = cb.Call(ctx, tt.probe)

			// Then its outcome decides the state
			assert.Equal(t, tt.wantState, cb.State())
		})
	}
}

func TestCircuitBreaker_SingleProbeInHalfOpen(t *testing.T) {
	ctx := context.Background()
	cb, clock := newTestBreaker(1, time.Second)
	_ = cb.Call(ctx, fail)
	clock.Advance(time.Second)

	// Given a probe that is still running
	probeStarted := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Call(ctx, func() error {
			close(probeStarted)
			<-release
			return nil
		})
	}()
	<-probeStarted

	// When another request arrives
	err := cb.Call(ctx, succeed)

	// Then it is rejected until the probe finishes
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, StateHalfOpen, cb.State())
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_NeutralErrors(t *testing.T) {
	ctx := context.Background()
	cb, _ := newTestBreaker(1, time.Minute)

	// Cancellation and budget refusals are not provider failures.
	_ = cb.Call(ctx, func() error { return context.Canceled })
	_ = cb.Call(ctx, func() error { return &domain.BudgetExceededError{LimitType: "calls", Limit: 1, Used: 1} })
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerMiddleware(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		mock := NewMockCoreLLM()
		mock.Error = errBoom
		core := CircuitBreakerMiddleware(0, time.Minute, nil)(mock)
		for range 5 {
			_, err := core.Do(ctx, ports.CompletionRequest{})
			assert.ErrorIs(t, err, errBoom)
		}
		assert.Equal(t, 5, mock.Calls())
	})

	t.Run("opens and records state", func(t *testing.T) {
		// Given a failing provider behind a breaker with a metrics collector
		mock := NewMockCoreLLM()
		mock.Error = errBoom
		metrics := newRecordingCollector()
		core := CircuitBreakerMiddleware(2, time.Hour, metrics)(mock)

		// When it fails more often than allowed
		for range 4 {
			_, _ = core.Do(ctx, ports.CompletionRequest{})
		}

		// Then only the first two calls reach the provider
		assert.Equal(t, 2, mock.Calls())
		_, err := core.Do(ctx, ports.CompletionRequest{})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, []float64{float64(StateOpen)}, metrics.values(ports.MetricCircuitState))
		assert.Equal(t, "test-model", core.GetModel())
	})
}

func TestCircuitBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitBreakerState(9).String())
}
