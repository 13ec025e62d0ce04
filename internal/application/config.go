package application

import (
	"time"
)

// Config is the complete configuration of a ranking run and serves as the
// primary configuration entry point for the system.
// Values are layered: DefaultConfig, then an optional YAML file, then the
// environment, then command-line flags. Validation happens once at the end.
type Config struct {
	// Generation controls how many candidates are produced and by which model.
	Generation GenerationConfig `yaml:"generation"`
	// ScoreFilter controls the independent per-candidate scoring pass.
	ScoreFilter ScoreFilterConfig `yaml:"score_filter"`
	// Ranking controls the pairwise ranking pass.
	Ranking RankingConfig `yaml:"ranking"`
	// Criteria are the ordered evaluation criteria shown to the judge.
	Criteria []string `yaml:"criteria" env:"CRITERIA,overwrite" validate:"required,min=1,max=20,dive,criterion"`
	// MaxWorkers bounds the number of judge calls in flight.
	MaxWorkers int `yaml:"max_workers" env:"MAX_WORKERS,overwrite" validate:"min=1,max=1000"`
	// Provider selects and authenticates the LLM backend.
	Provider ProviderConfig `yaml:"provider"`
	// Retry configures judge-level retries of transient failures.
	Retry RetryConfig `yaml:"retry"`
	// RateLimit throttles requests to the provider.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	// CircuitBreaker stops calling a failing provider for a cooldown.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	// Budget caps the calls and tokens a run may spend.
	Budget BudgetConfig `yaml:"budget"`
	// Duplicates controls the near-duplicate report after generation.
	Duplicates DuplicatesConfig `yaml:"duplicates"`
}

// GenerationConfig controls candidate generation.
type GenerationConfig struct {
	// Model is the generation model, optionally prefixed with a provider.
	Model string `yaml:"model" env:"GENERATE_MODEL,overwrite" validate:"required,modelname"`
	// NumGenerations is the number of candidates requested.
	NumGenerations int `yaml:"num_generations" env:"NUM_GENERATIONS,overwrite" validate:"min=1,max=1000"`
	// Temperature is passed to the generation model.
	Temperature float64 `yaml:"temperature" env:"GENERATE_TEMPERATURE,overwrite" validate:"min=0,max=2"`
	// MaxTokens caps each candidate's length. Zero uses the provider default.
	MaxTokens int `yaml:"max_tokens" env:"GENERATE_MAX_TOKENS,overwrite" validate:"min=0,max=100000"`
}

// ScoreFilterConfig controls the score filter.
type ScoreFilterConfig struct {
	// Enabled toggles the stage.
	Enabled bool `yaml:"enabled" env:"ENABLE_SCORE_FILTER,overwrite"`
	// Model is the scoring judge model.
	Model string `yaml:"model" env:"SCORE_MODEL,overwrite" validate:"required_if=Enabled true,omitempty,modelname"`
	// PoolSize is the number of candidates kept.
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE,overwrite" validate:"min=1,max=1000"`
	// Judge holds prompt options.
	Judge JudgeConfig `yaml:"judge"`
}

// RankingConfig controls the pairwise ranking stage.
type RankingConfig struct {
	// Enabled toggles the stage.
	Enabled bool `yaml:"enabled" env:"ENABLE_PAIRWISE_FILTER,overwrite"`
	// Strategy is tournament or elo.
	Strategy string `yaml:"strategy" env:"RANKING_STRATEGY,overwrite" validate:"required,oneof=tournament elo"`
	// Model is the pairwise judge model.
	Model string `yaml:"model" env:"PAIRWISE_MODEL,overwrite" validate:"required_if=Enabled true,omitempty,modelname"`
	// TopK is the number of final picks.
	TopK int `yaml:"top_k" env:"NUM_TOP_PICKS,overwrite" validate:"min=1,max=1000"`
	// PositionSwap asks the judge both orders and keeps only agreeing verdicts.
	PositionSwap bool `yaml:"position_swap" env:"POSITION_SWAP,overwrite"`
	// Judge holds prompt options.
	Judge JudgeConfig `yaml:"judge"`
}

// JudgeConfig holds prompt options shared by the scoring and pairwise judges.
type JudgeConfig struct {
	// Explain asks the judge to reason before the verdict.
	Explain bool `yaml:"explain"`
	// IncludeInstruction shows the original instruction to the judge.
	IncludeInstruction bool `yaml:"include_instruction"`
	// Temperature is passed to the judge model.
	Temperature float64 `yaml:"temperature" validate:"min=0,max=2"`
	// MaxTokens caps the judge response. Zero uses the provider default.
	MaxTokens int `yaml:"max_tokens" validate:"min=0,max=100000"`
}

// ProviderConfig selects the LLM backend.
type ProviderConfig struct {
	// Type is openai, anthropic or google.
	Type string `yaml:"type" env:"LLM_PROVIDER,overwrite" validate:"required,oneof=openai anthropic google"`
	// APIKey authenticates requests. For google it may be empty when
	// application default credentials are configured.
	APIKey string `yaml:"api_key" env:"OPENAI_API_KEY,overwrite" validate:"required_unless=Type google"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url" env:"OPENAI_API_BASE,overwrite" validate:"omitempty,url"`
	// TimeoutSeconds bounds each request.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS,overwrite" validate:"min=1,max=3600"`
}

// Timeout returns TimeoutSeconds as a duration.
func (p ProviderConfig) Timeout() time.Duration { return time.Duration(p.TimeoutSeconds) * time.Second }

// RetryConfig specifies the recovery strategy when transient judge
// failures occur.
type RetryConfig struct {
	// MaxAttempts is the total number of calls including the first.
	MaxAttempts int `yaml:"max_attempts" env:"RETRY_MAX_ATTEMPTS,overwrite" validate:"min=1,max=10"`
	// InitialWait is the base delay in milliseconds.
	InitialWait int `yaml:"initial_wait_ms" validate:"min=0,max=60000"`
	// MaxWait caps the delay in milliseconds.
	MaxWait int `yaml:"max_wait_ms" validate:"min=0,max=300000,gtefield=InitialWait"`
}

// RateLimitConfig throttles provider requests. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"RATE_LIMIT_RPS,overwrite" validate:"min=0"`
	Burst             int     `yaml:"burst" validate:"min=0"`
}

// CircuitBreakerConfig stops calling the provider after consecutive failures.
// Zero MaxFailures disables it.
type CircuitBreakerConfig struct {
	MaxFailures     int `yaml:"max_failures" validate:"min=0"`
	CooldownSeconds int `yaml:"cooldown_seconds" validate:"min=0,max=3600"`
}

// BudgetConfig caps resource consumption for a run. Zero means unlimited.
type BudgetConfig struct {
	MaxCalls  int64 `yaml:"max_calls" env:"BUDGET_MAX_CALLS,overwrite" validate:"min=0"`
	MaxTokens int64 `yaml:"max_tokens" env:"BUDGET_MAX_TOKENS,overwrite" validate:"min=0"`
}

// DuplicatesConfig controls the near-duplicate report. Zero disables it.
type DuplicatesConfig struct {
	Threshold float64 `yaml:"threshold" validate:"min=0,max=1"`
}

// DefaultCriteria are used when none are configured.
var DefaultCriteria = []string{"Factuality", "Instruction Following", "Precision"}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Generation: GenerationConfig{
			Model:          "gpt-4o-mini",
			NumGenerations: 10,
			Temperature:    1.0,
		},
		ScoreFilter: ScoreFilterConfig{
			Enabled:  true,
			Model:    "gpt-4o-mini",
			PoolSize: 5,
			Judge:    JudgeConfig{IncludeInstruction: true},
		},
		Ranking: RankingConfig{
			Enabled:  true,
			Strategy: StrategyTournament,
			Model:    "gpt-4o-mini",
			TopK:     3,
			Judge:    JudgeConfig{IncludeInstruction: true},
		},
		Criteria:   append([]string(nil), DefaultCriteria...),
		MaxWorkers: 100,
		Provider: ProviderConfig{
			Type:           "openai",
			TimeoutSeconds: 120,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 500,
			MaxWait:     10000,
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:     10,
			CooldownSeconds: 30,
		},
		Duplicates: DuplicatesConfig{Threshold: 0.95},
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Provider.APIKey != "" {
		c.Provider.APIKey = "REDACTED"
	}
	c.Criteria = append([]string(nil), c.Criteria...)
	return c
}
