package domain

import "sync/atomic"

// Usage is the cost a collaborator reports for one call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int64 { return u.PromptTokens + u.CompletionTokens }

// Add returns the element-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
	}
}

// UsageTotals accumulates usage across a pipeline run. It is safe for
// concurrent use; the zero value is ready.
type UsageTotals struct {
	prompt     atomic.Int64
	completion atomic.Int64
	calls      atomic.Int64
}

// Add records one collaborator call and its usage. Negative counts are
// ignored.
func (t *UsageTotals) Add(u Usage) {
	if u.PromptTokens > 0 {
		t.prompt.Add(u.PromptTokens)
	}
	if u.CompletionTokens > 0 {
		t.completion.Add(u.CompletionTokens)
	}
	t.calls.Add(1)
}

// Snapshot returns the current totals.
func (t *UsageTotals) Snapshot() UsageSnapshot {
	return UsageSnapshot{
		Usage: Usage{
			PromptTokens:     t.prompt.Load(),
			CompletionTokens: t.completion.Load(),
		},
		Calls: t.calls.Load(),
	}
}

// UsageSnapshot is a point-in-time copy of UsageTotals.
type UsageSnapshot struct {
	Usage
	Calls int64 `json:"calls"`
}
