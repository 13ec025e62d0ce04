package llm

import (
	"sync"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// DefaultMaxTokens is used when a request does not cap the completion and
// the provider requires a cap.
const DefaultMaxTokens = 4096

// BaseProvider provides common, thread-safe functionality for all LLM providers,
// primarily for managing the model name and estimating missing usage.
type BaseProvider struct {
	mu        sync.RWMutex
	model     string
	estimator TokenEstimator
}

func newBaseProvider(model string, estimator TokenEstimator) BaseProvider {
	if estimator == nil {
		estimator = DefaultTokenEstimator()
	}
	return BaseProvider{model: model, estimator: estimator}
}

// GetModel returns the name of the model currently configured for the provider.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name for the provider.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// requestModel returns the model for req, falling back to the configured one.
func (b *BaseProvider) requestModel(req ports.CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return b.GetModel()
}

// usage prefers the counts reported by the provider and estimates any that
// are missing from the prompt and completion text.
func (b *BaseProvider) usage(reportedIn, reportedOut int64, req ports.CompletionRequest, text string) domain.Usage {
	u := domain.Usage{PromptTokens: reportedIn, CompletionTokens: reportedOut}
	if u.PromptTokens <= 0 {
		u.PromptTokens = int64(b.estimator.EstimateTokens(req.System + req.Prompt))
	}
	if u.CompletionTokens <= 0 {
		u.CompletionTokens = int64(b.estimator.EstimateTokens(text))
	}
	return u
}

// maxTokens returns req.MaxTokens or DefaultMaxTokens when unset.
func maxTokens(req ports.CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return DefaultMaxTokens
}
