package llm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/go-bracket/internal/ports"
)

func TestBuildGoogleClientConfig(t *testing.T) {
	t.Run("api key selects the Gemini API", func(t *testing.T) {
		cc := buildGoogleClientConfig(ClientConfig{
			APIKey:  "g-key",
			BaseURL: "http://localhost:9999",
			Timeout: 30 * time.Second,
		})
		assert.Equal(t, genai.BackendGeminiAPI, cc.Backend)
		assert.Equal(t, "g-key", cc.APIKey)
		assert.Equal(t, "http://localhost:9999", cc.HTTPOptions.BaseURL)
		require.NotNil(t, cc.HTTPClient)
		assert.Equal(t, 30*time.Second, cc.HTTPClient.Timeout)
	})

	t.Run("no key falls back to Vertex AI", func(t *testing.T) {
		t.Setenv("GOOGLE_CLOUD_PROJECT", "proj")
		t.Setenv("GOOGLE_CLOUD_LOCATION", "us-central1")

		cc := buildGoogleClientConfig(ClientConfig{})
		assert.Equal(t, genai.BackendVertexAI, cc.Backend)
		assert.Equal(t, "proj", cc.Project)
		assert.Equal(t, "us-central1", cc.Location)
		assert.Nil(t, cc.HTTPClient)
	})
}

func TestGoogleProvider_BuildGenerationConfig(t *testing.T) {
	p := &googleProvider{BaseProvider: newBaseProvider("gemini-2.0-flash", CharacterEstimator{})}

	temp := 0.4
	cfg := p.buildGenerationConfig(ports.CompletionRequest{System: "sys", Temperature: &temp, MaxTokens: 128})
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "sys", cfg.SystemInstruction.Parts[0].Text)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.4, *cfg.Temperature, 1e-6)
	assert.Equal(t, int32(128), cfg.MaxOutputTokens)

	empty := p.buildGenerationConfig(ports.CompletionRequest{})
	assert.Nil(t, empty.SystemInstruction)
	assert.Nil(t, empty.Temperature)
	assert.Zero(t, empty.MaxOutputTokens)
}

func TestGoogleProvider_HandleError(t *testing.T) {
	p := &googleProvider{errorClassifier: &ErrorClassifier{Provider: "google"}}

	tests := []struct {
		name       string
		err        error
		wantType   ErrorType
		wantStatus int
	}{
		{
			name:       "genai rate limit",
			err:        genai.APIError{Code: http.StatusTooManyRequests, Message: "quota"},
			wantType:   ErrorTypeRateLimit,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "genai safety",
			err:        fmt.Errorf("generate: %w", genai.APIError{Code: http.StatusBadRequest, Message: "blocked by Safety settings"}),
			wantType:   ErrorTypeContentPolicy,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "googleapi server error",
			err:        &googleapi.Error{Code: http.StatusInternalServerError, Message: "internal"},
			wantType:   ErrorTypeServerError,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "googleapi blocked reason",
			err: &googleapi.Error{
				Code:   http.StatusBadRequest,
				Errors: []googleapi.ErrorItem{{Reason: "SAFETY", Message: "unsafe"}},
			},
			wantType:   ErrorTypeContentPolicy,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:     "network",
			err:      errors.New("connection reset"),
			wantType: ErrorTypeNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.handleError(tt.err)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantType, pe.Type)
			assert.Equal(t, tt.wantStatus, pe.StatusCode)
			assert.Equal(t, tt.err, pe.WrappedError)
		})
	}
}

func TestNewGoogleProvider_DefaultModel(t *testing.T) {
	core, err := newGoogleProvider(ClientConfig{APIKey: "g-key", TokenEstimator: CharacterEstimator{}})
	require.NoError(t, err)
	assert.Equal(t, GoogleDefaultModel, core.GetModel())
}
