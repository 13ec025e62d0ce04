package application

import (
	"context"
	"fmt"
	"slices"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// StageScore names the score filter's runner batch.
const StageScore = "score"

// ScoreReport is the outcome of a score filter pass.
type ScoreReport struct {
	// Pool holds the retained candidates, best first.
	Pool []domain.Candidate `json:"pool"`

	// Scores maps every input candidate to its scalar score.
	Scores map[domain.CandidateID]float64 `json:"scores"`

	// Values lists the scalars in input order, including defaulted zeros.
	Values []float64 `json:"values"`

	// Histogram bins Values.
	Histogram []Bucket `json:"histogram"`

	// Failed counts candidates whose score defaulted to zero.
	Failed int `json:"failed"`
}

// ScoreFilter keeps the best scoring candidates of a pool.
type ScoreFilter struct {
	runner  *Runner
	scorer  ports.Scorer
	session *Session
}

// NewScoreFilter creates a ScoreFilter.
func NewScoreFilter(r *Runner, s ports.Scorer, sess *Session) *ScoreFilter {
	return &ScoreFilter{runner: r, scorer: s, session: sess}
}

// Filter scores every candidate and returns the top poolSize of them,
// clamped to the input size. Ties keep input order. A candidate whose score
// fails gets 0.0 and a process log note; it is never dropped silently.
func (f *ScoreFilter) Filter(ctx context.Context, candidates []domain.Candidate, poolSize int) ScoreReport {
	report := ScoreReport{
		Scores: make(map[domain.CandidateID]float64, len(candidates)),
		Values: make([]float64, len(candidates)),
	}

	Each(ctx, f.runner, StageScore, candidates,
		func(ctx context.Context, c domain.Candidate) (domain.ScoreVerdict, error) {
			v, usage, err := f.scorer.Score(ctx, f.session.Instruction, f.session.Criteria, c.Text)
			f.session.Usage.Add(usage)
			return v, err
		},
		func(o Outcome[domain.Candidate, domain.ScoreVerdict]) {
			score := 0.0
			if o.Err != nil {
				report.Failed++
				f.session.absorb(ctx, fmt.Sprintf("score candidate %d", o.Task.ID), o.Err)
				f.session.Metrics.RecordCounter(ports.MetricScoreFailures, 1, nil)
			} else {
				score = o.Result.Scalar()
			}
			report.Scores[o.Task.ID] = score
			report.Values[o.Index] = score
			f.session.Metrics.RecordHistogram(ports.MetricCandidateScore, score, nil)
		})

	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b domain.Candidate) int {
		sa, sb := report.Scores[a.ID], report.Scores[b.ID]
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		default:
			return 0
		}
	})

	report.Pool = ranked[:clampK(poolSize, len(ranked))]
	report.Histogram = Histogram(report.Values, HistogramBins)
	return report
}
