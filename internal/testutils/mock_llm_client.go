package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// MockLLMClient implements ports.LLMClient with deterministic responses
// selected by substring match on the prompt.
// It records every request so tests can assert on prompts and call counts.
type MockLLMClient struct {
	mu        sync.Mutex
	model     string
	responses []MockResponse
	failures  []error
	requests  []ports.CompletionRequest
}

// MockResponse defines a pre-configured response pattern for the mock client.
type MockResponse struct {
	// Pattern is matched case-insensitively against the prompt.
	// The empty pattern matches everything.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
	// CompletionTokens is the reported completion usage.
	CompletionTokens int64
}

// NewMockLLMClient creates a MockLLMClient with a default response that
// parses as a first-wins pairwise verdict and as a score.
func NewMockLLMClient(model string) *MockLLMClient {
	m := &MockLLMClient{model: model}
	m.setupDefaultResponses()
	return m
}

func (m *MockLLMClient) setupDefaultResponses() {
	m.responses = []MockResponse{{
		Pattern:          "",
		Response:         "Final verdict: A",
		CompletionTokens: 4,
	}}
}

// AddResponse registers a response. Later registrations take priority.
func (m *MockLLMClient) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append([]MockResponse{r}, m.responses...)
}

// FailNext makes the next len(errs) calls return errs in order.
func (m *MockLLMClient) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Complete implements ports.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	if err := ctx.Err(); err != nil {
		return ports.Completion{}, err
	}
	if req.Prompt == "" {
		return ports.Completion{}, fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return ports.Completion{}, err
	}

	prompt := strings.ToLower(req.Prompt)
	for _, r := range m.responses {
		if strings.Contains(prompt, strings.ToLower(r.Pattern)) {
			return ports.Completion{
				Text:  r.Response,
				Model: m.model,
				Usage: domain.Usage{
					PromptTokens:     int64(m.EstimateTokens(req.Prompt)),
					CompletionTokens: r.CompletionTokens,
				},
			}, nil
		}
	}
	return ports.Completion{Text: "Mock response for testing purposes.", Model: m.model}, nil
}

// EstimateTokens approximates four characters per token, minimum one for
// non-empty text.
func (m *MockLLMClient) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return max(len(text)/4, 1)
}

// GetModel implements ports.LLMClient.
func (m *MockLLMClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// Requests returns a copy of the recorded requests.
func (m *MockLLMClient) Requests() []ports.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.CompletionRequest(nil), m.requests...)
}

// CallCount returns the number of Complete calls.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reset clears responses, failures and recorded requests.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = nil
	m.requests = nil
	m.setupDefaultResponses()
}

// Verify interface compliance at compile time.
var _ ports.LLMClient = (*MockLLMClient)(nil)
