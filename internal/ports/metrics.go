package ports

// Metric names recorded through MetricsCollector by the ranking core.
const (
	// MetricRunnerTasks counts finished runner tasks by stage and status.
	MetricRunnerTasks = "runner_tasks_total"

	// MetricMatches counts resolved pairwise matches by stage and source
	// (cache, judge or default).
	MetricMatches = "matches_total"

	// MetricScoreFailures counts candidates whose score defaulted to zero.
	MetricScoreFailures = "score_failures_total"

	// MetricCandidateScore observes each candidate's scalar score.
	MetricCandidateScore = "candidate_score"

	// MetricStageDuration is the latency operation for a whole runner batch.
	MetricStageDuration = "stage"
)

// Metric names recorded by the LLM transport.
const (
	// MetricLLMRequests counts provider requests by provider, model and status.
	MetricLLMRequests = "llm_requests_total"

	// MetricLLMTokens counts tokens by provider, model and token_type.
	MetricLLMTokens = "llm_tokens_total"

	// MetricLLMLatency observes request latency in seconds.
	MetricLLMLatency = "llm_latency_seconds"

	// MetricBudgetExceeded counts requests refused by the run budget.
	MetricBudgetExceeded = "budget_exceeded_total"

	// MetricCircuitState is the circuit breaker state by model
	// (0 closed, 1 open, 2 half open).
	MetricCircuitState = "circuit_breaker_state"

	// MetricBudgetRemaining is the remaining budget by limit_type.
	MetricBudgetRemaining = "budget_remaining"
)

// Label keys used with the metric names above.
const (
	LabelStage     = "stage"
	LabelStatus    = "status"
	LabelSource    = "source"
	LabelProvider  = "provider"
	LabelModel     = "model"
	LabelTokenType = "token_type"
	LabelLimitType = "limit_type"
)
