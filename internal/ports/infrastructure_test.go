package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-bracket/internal/domain"
)

// Test that our interfaces can be implemented correctly

type mockLLMClient struct{ model string }

func (m *mockLLMClient) Complete(_ context.Context, req CompletionRequest) (Completion, error) {
	return Completion{
		Text:  "mock response",
		Model: m.model,
		Usage: domain.Usage{PromptTokens: int64(m.EstimateTokens(req.Prompt)), CompletionTokens: 3},
	}, nil
}

func (m *mockLLMClient) EstimateTokens(text string) int { return (len(text) + 3) / 4 }

func (m *mockLLMClient) GetModel() string { return m.model }

type mapCache map[domain.MatchKey]domain.Verdict

func (c mapCache) Lookup(k domain.MatchKey) (domain.Verdict, bool) {
	v, ok := c[k]
	return v, ok
}

func (c mapCache) Store(k domain.MatchKey, v domain.Verdict) { c[k] = v }

type mockComparator struct{}

func (mockComparator) Compare(context.Context, string, []string, string, string) (domain.Verdict, domain.Usage, error) {
	return domain.SecondWins, domain.Usage{}, nil
}

func TestInterfaces_Implementation(t *testing.T) {
	var _ LLMClient = (*mockLLMClient)(nil)
	var _ MatchCache = mapCache(nil)
	var _ Comparator = mockComparator{}
	var _ MetricsCollector = NopMetrics{}
	var _ StageObserver = NopStageObserver{}

	llm := &mockLLMClient{model: "test-model"}
	assert.Equal(t, "test-model", llm.GetModel(), "GetModel() mismatch")

	resp, err := llm.Complete(context.Background(), CompletionRequest{Prompt: "hello world test"})
	require.NoError(t, err, "Complete() should not return error")
	assert.Equal(t, "mock response", resp.Text, "Complete() response mismatch")
	assert.Positive(t, resp.Usage.PromptTokens, "Usage should be reported")
}

func TestMatchCache_KeyOrientation(t *testing.T) {
	cache := mapCache{}

	// Given a verdict stored for (B, A)
	key := domain.NewMatchKey(7, 3)
	cache.Store(key, key.Orient(7, domain.FirstWins))

	// When the reversed pair looks it up
	got, ok := cache.Lookup(domain.NewMatchKey(3, 7))

	// Then it hits and still names 7 as the winner
	require.True(t, ok)
	winner, _ := key.Winner(got)
	assert.Equal(t, domain.CandidateID(7), winner)
}

func TestNopImplementations(t *testing.T) {
	ctx := context.Background()
	NopMetrics{}.RecordLatency("op", time.Second, nil)
	NopMetrics{}.RecordCounter("c", 1, nil)
	NopMetrics{}.RecordGauge("g", 1, nil)
	NopMetrics{}.RecordHistogram("h", 1, nil)

	obs := NopStageObserver{}
	assert.Equal(t, ctx, obs.StageStarted(ctx, "score", 3))
	obs.StageFinished(ctx, "score", nil)
}
