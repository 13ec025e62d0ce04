package application

import (
	"context"
	"fmt"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// Ranking strategies.
const (
	StrategyTournament = "tournament"
	StrategyElo        = "elo"
)

// Standing is one candidate's place in a ranking.
type Standing struct {
	Candidate domain.Candidate `json:"candidate"`
	Wins      int              `json:"wins"`
	Games     int              `json:"games"`
	Rating    float64          `json:"rating,omitempty"`
}

// RankReport is the outcome of a ranking invocation. Standings holds the
// top K in rank order.
type RankReport struct {
	Strategy   string         `json:"strategy"`
	Standings  []Standing     `json:"standings"`
	Matches    int            `json:"matches"`
	JudgeCalls int64          `json:"judge_calls"`
	Bracket    *BracketResult `json:"bracket,omitempty"`
}

// Candidates returns the ranked candidates.
func (r RankReport) Candidates() []domain.Candidate {
	out := make([]domain.Candidate, len(r.Standings))
	for i, s := range r.Standings {
		out[i] = s.Candidate
	}
	return out
}

// Ranker narrows a pool to its top k. Rankers never fail: judge errors are
// absorbed into defaults and recorded in the session log.
type Ranker interface {
	Rank(ctx context.Context, pool []domain.Candidate, k int) RankReport
}

// NewRanker returns the Ranker for strategy.
func NewRanker(
	strategy string,
	r *Runner,
	c ports.Comparator,
	newCache CacheFactory,
	s *Session,
) (Ranker, error) {
	switch strategy {
	case StrategyTournament:
		return NewTournament(r, c, newCache, s), nil
	case StrategyElo:
		return NewRatingEngine(r, c, newCache, s), nil
	default:
		return nil, fmt.Errorf("%w: unknown ranking strategy %q", domain.ErrInvalidConfiguration, strategy)
	}
}

func clampK(k, n int) int {
	if k < 0 {
		return 0
	}
	return min(k, n)
}
