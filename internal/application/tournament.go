package application

import (
	"context"
	"slices"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// Stage names used by the tournament.
const (
	StageBracket = "bracket"
	StagePlayoff = "playoff"
)

// BracketResult records a single-elimination pass.
type BracketResult struct {
	Champion  domain.CandidateID  `json:"champion"`
	RunnerUp  *domain.CandidateID `json:"runner_up,omitempty"`
	LossGraph domain.LossGraph    `json:"loss_graph"`

	// Rounds holds the entrants of each round, in pairing order.
	Rounds [][]domain.CandidateID `json:"rounds"`

	// Byes lists the candidate that advanced without playing, per round.
	Byes []domain.CandidateID `json:"byes,omitempty"`
}

// Tournament ranks a pool with a single-elimination bracket, then replays
// the plausible contenders in a round-robin playoff.
type Tournament struct {
	runner     *Runner
	comparator ports.Comparator
	newCache   CacheFactory
	session    *Session
}

// NewTournament creates a Tournament.
func NewTournament(r *Runner, c ports.Comparator, newCache CacheFactory, s *Session) *Tournament {
	return &Tournament{runner: r, comparator: c, newCache: newCache, session: s}
}

// Rank runs the bracket, back-fills the playoff field, runs the playoff and
// returns the first k of the playoff ranking.
func (t *Tournament) Rank(ctx context.Context, pool []domain.Candidate, k int) RankReport {
	report := RankReport{Strategy: StrategyTournament}
	if len(pool) == 0 {
		return report
	}

	player := newMatchPlayer(t.comparator, t.newCache(), t.session, StageBracket)
	br := t.bracket(ctx, player, pool)
	report.Bracket = &br

	field := Backfill(pool, br)
	clog.FromContext(ctx).With("champion", br.Champion).With("field", len(field)).Info("bracket complete")
	t.session.Log.Addf("Bracket champion: candidate %d; playoff field of %d", br.Champion, len(field))

	player.stage = StagePlayoff
	standings, matches := t.playoff(ctx, player, field)

	report.Standings = standings[:clampK(k, len(standings))]
	report.Matches = len(pool) - 1 + matches
	report.JudgeCalls = player.judgeCalls.Load()
	return report
}

// bracket plays adjacent pairs round by round until one candidate remains.
func (t *Tournament) bracket(ctx context.Context, player *matchPlayer, pool []domain.Candidate) BracketResult {
	res := BracketResult{LossGraph: make(domain.LossGraph, len(pool))}

	round := pool
	for len(round) > 1 {
		res.Rounds = append(res.Rounds, domain.IDs(round))

		pairs := make([]Pairing, 0, len(round)/2)
		for i := 0; i+1 < len(round); i += 2 {
			pairs = append(pairs, Pairing{A: round[i], B: round[i+1]})
		}

		final := len(pairs) == 1 && len(round) == 2
		winners := make([]domain.Candidate, len(pairs))
		playAll(ctx, t.runner, player, StageBracket, pairs, func(i int, p Pairing, m MatchResult) {
			winners[i] = p.A
			if m.Winner == p.B.ID {
				winners[i] = p.B
			}
			res.LossGraph[m.Loser] = m.Winner
			if final {
				loser := m.Loser
				res.RunnerUp = &loser
			}
		})

		if len(round)%2 == 1 {
			bye := round[len(round)-1]
			res.Byes = append(res.Byes, bye.ID)
			winners = append(winners, bye)
		}
		round = winners
	}

	res.Champion = round[0].ID
	return res
}

// Backfill builds the playoff field: the champion, the runner-up, everyone
// who lost to either of them, and every direct challenger of the champion.
// The champion and runner-up come first; the rest follow in pool order.
func Backfill(pool []domain.Candidate, br BracketResult) []domain.Candidate {
	byID := make(map[domain.CandidateID]domain.Candidate, len(pool))
	for _, c := range pool {
		byID[c.ID] = c
	}

	field := make([]domain.Candidate, 0, 4)
	seen := make(map[domain.CandidateID]bool)
	add := func(id domain.CandidateID) {
		if c, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			field = append(field, c)
		}
	}

	add(br.Champion)
	if br.RunnerUp != nil {
		add(*br.RunnerUp)
	}
	for _, c := range pool {
		winner, lost := br.LossGraph[c.ID]
		if !lost {
			continue
		}
		if winner == br.Champion || (br.RunnerUp != nil && winner == *br.RunnerUp) {
			add(c.ID)
		}
	}
	return field
}

// playoff plays every pair of field once and orders by wins, ties kept in
// field order. It returns the standings and the number of matches resolved.
func (t *Tournament) playoff(ctx context.Context, player *matchPlayer, field []domain.Candidate) ([]Standing, int) {
	standings := make([]Standing, len(field))
	index := make(map[domain.CandidateID]int, len(field))
	for i, c := range field {
		standings[i] = Standing{Candidate: c, Games: len(field) - 1}
		index[c.ID] = i
	}

	pairs := roundRobin(field)
	playAll(ctx, t.runner, player, StagePlayoff, pairs, func(_ int, _ Pairing, m MatchResult) {
		standings[index[m.Winner]].Wins++
	})

	slices.SortStableFunc(standings, func(a, b Standing) int {
		return b.Wins - a.Wins
	})
	return standings, len(pairs)
}
