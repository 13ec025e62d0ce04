package application

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// Elo parameters.
const (
	InitialRating = 1000.0
	EloK          = 32.0
)

// StageRating names the rating engine's runner batch.
const StageRating = "rating"

// ExpectedScore is the probability that a player rated ra beats one rated rb.
func ExpectedScore(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}

// EloUpdate returns the new ratings of a match's winner and loser.
func EloUpdate(winner, loser float64) (float64, float64) {
	expWinner := ExpectedScore(winner, loser)
	expLoser := ExpectedScore(loser, winner)
	return winner + EloK*(1-expWinner), loser + EloK*(0-expLoser)
}

// RatingEngine ranks a pool by all-pairs play with incremental Elo updates.
type RatingEngine struct {
	runner     *Runner
	comparator ports.Comparator
	newCache   CacheFactory
	session    *Session
}

// NewRatingEngine creates a RatingEngine.
func NewRatingEngine(r *Runner, c ports.Comparator, newCache CacheFactory, s *Session) *RatingEngine {
	return &RatingEngine{runner: r, comparator: c, newCache: newCache, session: s}
}

// Rank plays every unordered pair once and returns the k highest rated
// candidates. Updates are applied in completion order; exact rating ties are
// broken by ascending CandidateID.
func (e *RatingEngine) Rank(ctx context.Context, pool []domain.Candidate, k int) RankReport {
	report := RankReport{Strategy: StrategyElo}
	if len(pool) == 0 {
		return report
	}

	standings := make([]Standing, len(pool))
	index := make(map[domain.CandidateID]int, len(pool))
	for i, c := range pool {
		standings[i] = Standing{Candidate: c, Rating: InitialRating}
		index[c.ID] = i
	}

	player := newMatchPlayer(e.comparator, e.newCache(), e.session, StageRating)
	pairs := roundRobin(pool)
	playAll(ctx, e.runner, player, StageRating, pairs, func(_ int, _ Pairing, m MatchResult) {
		w, l := &standings[index[m.Winner]], &standings[index[m.Loser]]
		w.Rating, l.Rating = EloUpdate(w.Rating, l.Rating)
		w.Wins++
		w.Games++
		l.Games++
	})

	sortByRating(standings)

	e.session.Log.Addf("Elo ranking over %d candidates: %d matches, leader candidate %d (%.1f)",
		len(pool), len(pairs), standings[0].Candidate.ID, standings[0].Rating)

	report.Standings = standings[:clampK(k, len(standings))]
	report.Matches = len(pairs)
	report.JudgeCalls = player.judgeCalls.Load()
	return report
}

// sortByRating orders by rating descending. Ratings are compared exactly;
// equal ratings fall back to ascending CandidateID.
func sortByRating(standings []Standing) {
	slices.SortFunc(standings, func(a, b Standing) int {
		if a.Rating != b.Rating {
			return cmp.Compare(b.Rating, a.Rating)
		}
		return cmp.Compare(a.Candidate.ID, b.Candidate.ID)
	})
}
