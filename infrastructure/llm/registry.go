package llm

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-bracket/internal/ports"
)

// ProviderConfig describes how to reach one provider.
type ProviderConfig struct {
	// Type is the registered provider factory name.
	Type string
	// EnvVar names the environment variable holding the API key. It is
	// consulted only when the registry has no explicit key for the provider.
	EnvVar string
	// DefaultModel is used for a spec naming only the provider.
	DefaultModel string
	// BaseURL overrides the provider endpoint.
	BaseURL string
}

// DefaultProviders are the built-in provider configurations.
var DefaultProviders = map[string]ProviderConfig{
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: OpenAIDefaultModel,
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: AnthropicDefaultModel,
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: GoogleDefaultModel,
	},
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// DefaultProvider serves model specs without a provider prefix.
	DefaultProvider string
	// Providers defaults to DefaultProviders when nil.
	Providers map[string]ProviderConfig
	// APIKey and BaseURL apply to the default provider and take precedence
	// over its EnvVar and BaseURL.
	APIKey  string
	BaseURL string
	// Timeout is the HTTP timeout of every client.
	Timeout time.Duration
	// Middleware wraps every client, first outermost. A stateful middleware
	// such as RateLimitMiddleware is shared by all clients built from it.
	Middleware []Middleware
	// ProviderMiddleware, when set, returns middleware for clients of one
	// provider, e.g. metrics labelled with the provider name. It wraps
	// outside Middleware so it also sees requests the shared middleware
	// rejects.
	ProviderMiddleware func(provider string) []Middleware
	// Estimator is shared by all clients. Nil uses DefaultTokenEstimator.
	Estimator TokenEstimator
}

// Registry hands out one client per provider/model pair and reuses it for
// every later request of the same pair.
type Registry struct {
	cfg     RegistryConfig
	mu      sync.Mutex
	clients map[string]ports.LLMClient
	lookup  func(string) string
}

// NewRegistry validates cfg and returns an empty registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Providers == nil {
		cfg.Providers = DefaultProviders
	}
	if cfg.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider cannot be empty")
	}
	if _, ok := cfg.Providers[cfg.DefaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", cfg.DefaultProvider)
	}
	return &Registry{
		cfg:     cfg,
		clients: make(map[string]ports.LLMClient),
		lookup:  os.Getenv,
	}, nil
}

// ParseModel splits "provider/model" into its parts. A bare model belongs
// to defaultProvider. Either side being empty is ErrInvalidModel.
func ParseModel(spec, defaultProvider string) (provider, model string, err error) {
	provider, model, found := strings.Cut(strings.TrimSpace(spec), "/")
	if !found {
		provider, model = defaultProvider, provider
	}
	if provider == "" || model == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidModel, spec)
	}
	return provider, model, nil
}

// Client returns the client for spec, creating it on first use.
func (r *Registry) Client(spec string) (ports.LLMClient, error) {
	provider, model, err := ParseModel(spec, r.cfg.DefaultProvider)
	if err != nil {
		return nil, err
	}
	key := provider + "/" + model

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[key]; ok {
		return c, nil
	}

	c, err := r.createClient(provider, model)
	if err != nil {
		return nil, err
	}
	r.clients[key] = c
	return c, nil
}

func (r *Registry) createClient(provider, model string) (ports.LLMClient, error) {
	pc, ok := r.cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	apiKey, baseURL := "", pc.BaseURL
	if provider == r.cfg.DefaultProvider {
		apiKey = r.cfg.APIKey
		if r.cfg.BaseURL != "" {
			baseURL = r.cfg.BaseURL
		}
	}
	if apiKey == "" && pc.EnvVar != "" {
		apiKey = r.lookup(pc.EnvVar)
	}

	mw := r.cfg.Middleware
	if r.cfg.ProviderMiddleware != nil {
		mw = slices.Concat(r.cfg.ProviderMiddleware(provider), mw)
	}

	c, err := NewClient(pc.Type, ClientConfig{
		APIKey:         apiKey,
		Model:          model,
		BaseURL:        baseURL,
		Timeout:        r.cfg.Timeout,
		TokenEstimator: r.cfg.Estimator,
		Middleware:     mw,
	})
	if err != nil {
		return nil, fmt.Errorf("client %s/%s: %w", provider, model, err)
	}
	return c, nil
}

// Models lists the provider/model pairs created so far.
func (r *Registry) Models() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.clients))
	for k := range r.clients {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
