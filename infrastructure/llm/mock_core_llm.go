package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// errSimulated is returned by MockCoreLLM when a failure is scripted
// without an explicit Error.
var errSimulated = errors.New("simulated failure")

// MockCoreLLM is a scriptable CoreLLM for middleware tests.
type MockCoreLLM struct {
	mu sync.Mutex

	Response      string
	TokensIn      int64
	TokensOut     int64
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt fails the first N calls, then succeeds.
	FailUntilAttempt int

	CallCount      int
	LastRequest    ports.CompletionRequest
	Contexts       []context.Context
	CallTimestamps []time.Time
}

// NewMockCoreLLM returns a mock that always succeeds.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// Do implements CoreLLM.
func (m *MockCoreLLM) Do(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastRequest = req
	m.Contexts = append(m.Contexts, ctx)
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay, scripted, failUntil := m.ResponseDelay, m.Error, m.FailUntilAttempt
	resp, in, out, model := m.Response, m.TokensIn, m.TokensOut, m.Model
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ports.Completion{}, ctx.Err()
		}
	}

	if failUntil > 0 && call <= failUntil {
		if scripted != nil {
			return ports.Completion{}, scripted
		}
		return ports.Completion{}, errSimulated
	}
	if failUntil == 0 && scripted != nil {
		return ports.Completion{}, scripted
	}

	if req.Model != "" {
		model = req.Model
	}
	return ports.Completion{
		Text:  resp,
		Model: model,
		Usage: domain.Usage{PromptTokens: in, CompletionTokens: out},
	}, nil
}

// GetModel implements CoreLLM.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel implements CoreLLM.
func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// Calls returns the number of Do calls so far.
func (m *MockCoreLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
