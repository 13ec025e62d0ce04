package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-bracket/internal/ports"
)

func anthropicServer(t *testing.T, status int, body string) (*httptest.Server, *map[string]any, *int) {
	t.Helper()
	var (
		last  map[string]any
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&last))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &last, &calls
}

func newTestAnthropic(t *testing.T, baseURL string) CoreLLM {
	t.Helper()
	p, err := newAnthropicProvider(ClientConfig{
		APIKey:         "sk-ant-test",
		Model:          "claude-3-5-haiku-latest",
		BaseURL:        baseURL,
		Timeout:        5 * time.Second,
		TokenEstimator: CharacterEstimator{},
	})
	require.NoError(t, err)
	return p
}

func TestAnthropicProvider_Do(t *testing.T) {
	srv, last, _ := anthropicServer(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-haiku-latest",
		"content": [{"type": "text", "text": "Final verdict: "}, {"type": "text", "text": "B"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 17, "output_tokens": 4}
	}`)
	p := newTestAnthropic(t, srv.URL)

	// Given a temperature above Anthropic's range and no token cap
	temp := 1.7
	c, err := p.Do(context.Background(), ports.CompletionRequest{
		System:      "judge",
		Prompt:      "compare",
		Temperature: &temp,
	})

	// Then text blocks are joined and usage is reported
	require.NoError(t, err)
	assert.Equal(t, "Final verdict: B", c.Text)
	assert.Equal(t, int64(17), c.Usage.PromptTokens)
	assert.Equal(t, int64(4), c.Usage.CompletionTokens)

	// And the request uses the default cap and a clamped temperature
	body := *last
	assert.Equal(t, "claude-3-5-haiku-latest", body["model"])
	assert.InDelta(t, DefaultMaxTokens, body["max_tokens"], 1e-9)
	assert.InDelta(t, 1.0, body["temperature"], 1e-9)
	system, ok := body["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "judge", system[0].(map[string]any)["text"])
}

func TestAnthropicProvider_EmptyResponse(t *testing.T) {
	srv, _, _ := anthropicServer(t, http.StatusOK, `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "m",
		"content": [], "usage": {"input_tokens": 1, "output_tokens": 0}
	}`)
	p := newTestAnthropic(t, srv.URL)

	_, err := p.Do(context.Background(), ports.CompletionRequest{Prompt: "p"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicProvider_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType ErrorType
	}{
		{name: "overloaded", status: http.StatusServiceUnavailable, wantType: ErrorTypeServerError},
		{name: "rate limited", status: http.StatusTooManyRequests, wantType: ErrorTypeRateLimit},
		{name: "forbidden", status: http.StatusForbidden, wantType: ErrorTypeAuthentication},
		{name: "not found", status: http.StatusNotFound, wantType: ErrorTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, calls := anthropicServer(t, tt.status,
				`{"type": "error", "error": {"type": "api_error", "message": "nope"}}`)
			p := newTestAnthropic(t, srv.URL)

			_, err := p.Do(context.Background(), ports.CompletionRequest{Prompt: "p"})

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantType, pe.Type)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, 1, *calls, "the SDK does not retry on its own")
		})
	}
}
