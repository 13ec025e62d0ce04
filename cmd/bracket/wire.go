package main

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-bracket/infrastructure/cache"
	"github.com/ahrav/go-bracket/infrastructure/judge"
	"github.com/ahrav/go-bracket/infrastructure/llm"
	"github.com/ahrav/go-bracket/infrastructure/middleware"
	"github.com/ahrav/go-bracket/internal/application"
	"github.com/ahrav/go-bracket/internal/ports"
)

// app is a fully wired pipeline and the collaborators the command reports on.
type app struct {
	pipeline *application.Pipeline
	metrics  *middleware.PrometheusMetrics
	budget   *middleware.BudgetManager
	registry *llm.Registry
}

// buildApp wires cfg into a pipeline. cfg must already be validated.
//
// Every LLM call passes, from the outside in, through the budget, the
// per-provider metrics and tracing, the shared rate limiter, the request
// timeout and the circuit breaker. Judges retry transient failures above
// all of them.
func buildApp(cfg application.Config, deps dependencies) (*app, error) {
	metrics := middleware.NewPrometheusMetrics()

	var shared []llm.Middleware
	if cfg.RateLimit.RequestsPerSecond > 0 {
		shared = append(shared, llm.RateLimitMiddleware(rate.Limit(cfg.RateLimit.RequestsPerSecond), max(cfg.RateLimit.Burst, 1)))
	}
	shared = append(shared, llm.TimeoutMiddleware(cfg.Provider.Timeout()))
	if cfg.CircuitBreaker.MaxFailures > 0 {
		cooldown := time.Duration(cfg.CircuitBreaker.CooldownSeconds) * time.Second
		shared = append(shared, llm.CircuitBreakerMiddleware(cfg.CircuitBreaker.MaxFailures, cooldown, metrics))
	}

	registry, err := llm.NewRegistry(llm.RegistryConfig{
		DefaultProvider: cfg.Provider.Type,
		Providers:       deps.providerConfigs(),
		APIKey:          cfg.Provider.APIKey,
		BaseURL:         cfg.Provider.BaseURL,
		Timeout:         cfg.Provider.Timeout(),
		Middleware:      shared,
		ProviderMiddleware: func(provider string) []llm.Middleware {
			return []llm.Middleware{
				llm.MetricsMiddleware(provider, metrics),
				llm.TracingMiddleware(provider),
			}
		},
		Estimator: deps.tokenEstimator(),
	})
	if err != nil {
		return nil, err
	}

	budget := middleware.NewBudgetManager(middleware.BudgetFromConfig(cfg.Budget), middleware.NewOTelBudgetObserver(metrics))
	if err := budget.Validate(); err != nil {
		return nil, err
	}
	client := func(model string) (ports.LLMClient, error) {
		c, err := registry.Client(model)
		if err != nil {
			return nil, err
		}
		return budget.Wrap(c), nil
	}

	retry := judge.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.InitialWait) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxWait) * time.Millisecond,
		MaxJitter:   judge.DefaultRetryPolicy().MaxJitter,
	}

	gc, err := client(cfg.Generation.Model)
	if err != nil {
		return nil, fmt.Errorf("generation model: %w", err)
	}
	generator := judge.NewGenerator(gc, judge.Options{
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Retry:       retry,
	}, cfg.MaxWorkers)

	var scorer ports.Scorer
	if cfg.ScoreFilter.Enabled {
		sc, err := client(cfg.ScoreFilter.Model)
		if err != nil {
			return nil, fmt.Errorf("score model: %w", err)
		}
		scorer = judge.NewScorer(sc, judgeOptions(cfg.ScoreFilter.Judge, retry))
	}

	var comparator ports.Comparator
	if cfg.Ranking.Enabled {
		pc, err := client(cfg.Ranking.Model)
		if err != nil {
			return nil, fmt.Errorf("pairwise model: %w", err)
		}
		comparator = judge.NewComparator(pc, judgeOptions(cfg.Ranking.Judge, retry))
		if cfg.Ranking.PositionSwap {
			comparator = middleware.NewPositionSwapComparator(comparator)
		}
	}

	pipeline := application.NewPipeline(cfg, generator, scorer, comparator, cache.Factory,
		application.WithMetrics(metrics),
		application.WithStageObserver(middleware.NewOTelStageObserver()),
	)
	return &app{pipeline: pipeline, metrics: metrics, budget: budget, registry: registry}, nil
}

func judgeOptions(jc application.JudgeConfig, retry judge.RetryPolicy) judge.Options {
	return judge.Options{
		IncludeInstruction: jc.IncludeInstruction,
		Explain:            jc.Explain,
		Temperature:        jc.Temperature,
		MaxTokens:          jc.MaxTokens,
		Retry:              retry,
	}
}
