package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/go-bracket/internal/ports"
)

// GoogleDefaultModel is used when no model is configured.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements the CoreLLM interface for the Gemini API. With an
// API key it uses the Gemini API backend; without one it uses Vertex AI with
// application default credentials.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	errorClassifier *ErrorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	clientConfig := buildGoogleClientConfig(config)
	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider:    newBaseProvider(model, config.TokenEstimator),
		client:          client,
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

func buildGoogleClientConfig(config ClientConfig) *genai.ClientConfig {
	cc := &genai.ClientConfig{}
	if config.APIKey != "" {
		cc.APIKey = config.APIKey
		cc.Backend = genai.BackendGeminiAPI
	} else {
		cc.Backend = genai.BackendVertexAI
		cc.Project = os.Getenv("GOOGLE_CLOUD_PROJECT")
		cc.Location = os.Getenv("GOOGLE_CLOUD_LOCATION")
	}
	if config.BaseURL != "" {
		cc.HTTPOptions.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}
	return cc
}

// Do sends a GenerateContent request.
func (p *googleProvider) Do(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	model := p.requestModel(req)
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, p.buildGenerationConfig(req))
	if err != nil {
		return ports.Completion{}, p.handleError(err)
	}

	text := resp.Text()
	if text == "" {
		return ports.Completion{}, ErrEmptyResponse
	}

	var in, out int64
	if resp.UsageMetadata != nil {
		in = int64(resp.UsageMetadata.PromptTokenCount)
		out = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return ports.Completion{Text: text, Model: model, Usage: p.usage(in, out, req, text)}, nil
}

func (p *googleProvider) buildGenerationConfig(req ports.CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(ClampFloat64(*req.Temperature, MinTemperature, MaxTemperature)))
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(min(req.MaxTokens, math.MaxInt32))
	}
	return config
}

// handleError classifies genai and googleapi errors.
func (p *googleProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		if strings.Contains(strings.ToLower(genaiErr.Message), "safety") {
			return NewProviderError("google", ErrorTypeContentPolicy, genaiErr.Code,
				"request blocked by safety filters", err)
		}
		return p.errorClassifier.ClassifyHTTPError(genaiErr.Code, genaiErr.Message, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		if containsContentPolicyError(apiErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeNetwork, 0, "request failed", err)
}

// containsContentPolicyError reports whether a Google API error was caused
// by safety filtering.
func containsContentPolicyError(apiErr *googleapi.Error) bool {
	lower := strings.ToLower(apiErr.Message)
	if strings.Contains(lower, "safety") || strings.Contains(lower, "blocked") {
		return true
	}
	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}
	return false
}
