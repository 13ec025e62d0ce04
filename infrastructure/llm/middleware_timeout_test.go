package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-bracket/internal/ports"
)

func TestTimeoutMiddleware(t *testing.T) {
	t.Run("slow request is cut off", func(t *testing.T) {
		mock := NewMockCoreLLM()
		mock.ResponseDelay = time.Second
		core := TimeoutMiddleware(20 * time.Millisecond)(mock)

		start := time.Now()
		_, err := core.Do(context.Background(), ports.CompletionRequest{})

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("fast request passes", func(t *testing.T) {
		mock := NewMockCoreLLM()
		core := TimeoutMiddleware(time.Second)(mock)

		c, err := core.Do(context.Background(), ports.CompletionRequest{})
		require.NoError(t, err)
		assert.Equal(t, "test response", c.Text)

		deadline, ok := mock.Contexts[0].Deadline()
		require.True(t, ok, "provider sees a deadline")
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
	})

	t.Run("each retry attempt gets a fresh deadline", func(t *testing.T) {
		// Given a provider failing twice, each call taking 30ms
		mock := NewMockCoreLLM()
		mock.FailUntilAttempt = 2
		mock.ResponseDelay = 30 * time.Millisecond
		core := RetryMiddleware(3, time.Millisecond, time.Millisecond)(TimeoutMiddleware(50 * time.Millisecond)(mock))

		// When the total time exceeds one timeout
		_, err := core.Do(context.Background(), ports.CompletionRequest{})

		// Then the third attempt still succeeds
		require.NoError(t, err)
		assert.Equal(t, 3, mock.Calls())
	})

	t.Run("non-positive timeout disables", func(t *testing.T) {
		mock := NewMockCoreLLM()
		assert.Same(t, mock, TimeoutMiddleware(0)(mock))
	})
}
