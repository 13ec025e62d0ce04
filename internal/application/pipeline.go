package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// StageGenerate names the generation stage.
const StageGenerate = "generate"

// EventKind classifies pipeline events.
type EventKind string

// Event kinds, in the order a run emits them.
const (
	EventStarted   EventKind = "started"
	EventProgress  EventKind = "progress"
	EventGenerated EventKind = "generated"
	EventScored    EventKind = "scored"
	EventRanked    EventKind = "ranked"
	EventFinished  EventKind = "finished"
)

// Event is one update streamed to the caller during a run.
type Event struct {
	Kind      EventKind            `json:"kind"`
	Message   string               `json:"message"`
	Progress  *Progress            `json:"progress,omitempty"`
	Histogram []Bucket             `json:"histogram,omitempty"`
	TopPicks  []domain.Candidate   `json:"top_picks,omitempty"`
	Usage     domain.UsageSnapshot `json:"usage"`
	Log       string               `json:"log"`
}

// EventSink receives events on the goroutine running the pipeline.
type EventSink func(Event)

// Request is the input of a pipeline run.
type Request struct {
	Instruction string
	// Criteria overrides the configured criteria when non-empty.
	Criteria []string
}

// Report is the complete outcome of a pipeline run.
type Report struct {
	RunID       string               `json:"run_id"`
	Instruction string               `json:"instruction"`
	Criteria    []string             `json:"criteria"`
	Candidates  []domain.Candidate   `json:"candidates"`
	Duplicates  []Duplicate          `json:"duplicates,omitempty"`
	Scores      *ScoreReport         `json:"scores,omitempty"`
	Ranking     *RankReport          `json:"ranking,omitempty"`
	TopPicks    []domain.Candidate   `json:"top_picks"`
	Usage       domain.UsageSnapshot `json:"usage"`
	Log         []string             `json:"log"`
	Duration    time.Duration        `json:"duration"`
}

// Pipeline runs generate, score filter and ranking in sequence.
type Pipeline struct {
	cfg        Config
	generator  ports.Generator
	scorer     ports.Scorer
	comparator ports.Comparator
	newCache   CacheFactory
	metrics    ports.MetricsCollector
	observer   ports.StageObserver
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithMetrics sets the metrics collector.
func WithMetrics(m ports.MetricsCollector) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithStageObserver sets the stage observer.
func WithStageObserver(o ports.StageObserver) PipelineOption {
	return func(p *Pipeline) { p.observer = o }
}

// NewPipeline creates a Pipeline. The scorer and comparator may be nil when
// their stage is disabled.
func NewPipeline(
	cfg Config,
	g ports.Generator,
	s ports.Scorer,
	c ports.Comparator,
	newCache CacheFactory,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		generator:  g,
		scorer:     s,
		comparator: c,
		newCache:   newCache,
		metrics:    ports.NopMetrics{},
		observer:   ports.NopStageObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// validate fails fast on configuration errors before any judge call.
func (p *Pipeline) validate(req Request) error {
	err := p.cfg.Validate()
	verr := domain.NewValidationError("Pipeline")
	if strings.TrimSpace(req.Instruction) == "" {
		verr.AddError("instruction is required")
	}
	if p.generator == nil {
		verr.AddError("a generator is required")
	}
	if p.cfg.ScoreFilter.Enabled && p.scorer == nil {
		verr.AddError("score filter is enabled but no scorer is configured")
	}
	if p.cfg.Ranking.Enabled && (p.comparator == nil || p.newCache == nil) {
		verr.AddError("ranking is enabled but no comparator or match cache is configured")
	}
	if verr.HasErrors() {
		return errors.Join(err, verr)
	}
	return err
}

// Run executes the pipeline. Judge failures never abort a run; they are
// defaulted and recorded in the report's log. Configuration errors are
// returned before any judge call. When ctx is cancelled the run stops at the
// next stage boundary and returns the partial report with ctx's error.
func (p *Pipeline) Run(ctx context.Context, req Request, sink EventSink) (*Report, error) {
	if sink == nil {
		sink = func(Event) {}
	}
	if err := p.validate(req); err != nil {
		return nil, err
	}

	criteria := req.Criteria
	if len(criteria) == 0 {
		criteria = p.cfg.Criteria
	}
	sess := NewSession(req.Instruction, criteria, p.metrics)
	report := &Report{
		RunID:       uuid.NewString(),
		Instruction: req.Instruction,
		Criteria:    criteria,
	}
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("run_id", report.RunID))
	start := time.Now()

	emit := func(kind EventKind, msg string, mod func(*Event)) {
		ev := Event{Kind: kind, Message: msg, Usage: sess.Usage.Snapshot(), Log: sess.Log.String()}
		if mod != nil {
			mod(&ev)
		}
		sink(ev)
	}
	finish := func(err error) (*Report, error) {
		report.Usage = sess.Usage.Snapshot()
		report.Log = sess.Log.Lines()
		report.Duration = time.Since(start)
		return report, err
	}

	runner := NewRunner(p.cfg.MaxWorkers,
		WithRunnerMetrics(p.metrics),
		WithProgress(func(pr Progress) {
			emit(EventProgress, pr.String(), func(e *Event) { e.Progress = &pr })
		}))

	sess.Log.Addf("Run %s: generating %d candidates", report.RunID, p.cfg.Generation.NumGenerations)
	emit(EventStarted, "generating candidates", nil)

	// Generate.
	sctx := p.observer.StageStarted(ctx, StageGenerate, p.cfg.Generation.NumGenerations)
	texts, usage, err := p.generator.Generate(sctx, req.Instruction, p.cfg.Generation.NumGenerations)
	sess.Usage.Add(usage)
	if err != nil {
		sess.Log.Addf("Generation error: %s", domain.Preview(err.Error(), domain.PreviewLimit))
	}
	if len(texts) == 0 {
		err = errors.Join(domain.ErrNoCandidates, err)
		p.observer.StageFinished(sctx, StageGenerate, err)
		return finish(fmt.Errorf("generation failed: %w", err))
	}
	p.observer.StageFinished(sctx, StageGenerate, nil)

	report.Candidates = domain.NewCandidates(texts)
	sess.Log.Addf("Generated %d of %d candidates", len(texts), p.cfg.Generation.NumGenerations)
	for i, c := range report.Candidates {
		sess.Log.Addf("  %d. %s", i+1, domain.Preview(c.Text, domain.PreviewLimit))
	}
	report.Duplicates = FindDuplicates(report.Candidates, p.cfg.Duplicates.Threshold)
	for _, d := range report.Duplicates {
		sess.Log.Addf("Candidates %d and %d are near duplicates (similarity %.2f); both kept", d.A, d.B, d.Similarity)
	}
	emit(EventGenerated, fmt.Sprintf("generated %d candidates", len(texts)), nil)

	pool := report.Candidates

	// Score filter.
	if p.cfg.ScoreFilter.Enabled {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		sctx := p.observer.StageStarted(ctx, StageScore, len(pool))
		sr := NewScoreFilter(runner, p.scorer, sess).Filter(sctx, pool, p.cfg.ScoreFilter.PoolSize)
		p.observer.StageFinished(sctx, StageScore, nil)

		report.Scores = &sr
		pool = sr.Pool
		sess.Log.Addf("Score filter kept %d of %d candidates (%d defaulted to 0)", len(pool), len(report.Candidates), sr.Failed)
		emit(EventScored, fmt.Sprintf("kept top %d by score", len(pool)), func(e *Event) {
			e.Histogram = sr.Histogram
		})
	}

	// Ranking.
	k := p.cfg.Ranking.TopK
	if p.cfg.Ranking.Enabled {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		ranker, err := NewRanker(p.cfg.Ranking.Strategy, runner, p.comparator, p.newCache, sess)
		if err != nil {
			return finish(err)
		}
		sctx := p.observer.StageStarted(ctx, p.cfg.Ranking.Strategy, len(pool))
		rr := ranker.Rank(sctx, pool, k)
		p.observer.StageFinished(sctx, p.cfg.Ranking.Strategy, nil)

		report.Ranking = &rr
		report.TopPicks = rr.Candidates()
		sess.Log.Addf("%s ranking: %d matches, %d judge calls", rr.Strategy, rr.Matches, rr.JudgeCalls)
		emit(EventRanked, fmt.Sprintf("ranked %d candidates", len(pool)), func(e *Event) {
			e.TopPicks = report.TopPicks
		})
	} else {
		report.TopPicks = pool[:clampK(k, len(pool))]
	}

	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	snap := sess.Usage.Snapshot()
	sess.Log.Addf("Prompt tokens: %d / Completion tokens: %d / Total tokens: %d",
		snap.PromptTokens, snap.CompletionTokens, snap.Total())
	clog.FromContext(ctx).With("top_picks", len(report.TopPicks)).With("calls", snap.Calls).Info("pipeline finished")
	emit(EventFinished, fmt.Sprintf("selected %d top picks", len(report.TopPicks)), func(e *Event) {
		e.TopPicks = report.TopPicks
	})
	return finish(nil)
}
