package application

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/testutils"
)

func TestTournament_AlwaysFirstWins(t *testing.T) {
	// Given four candidates and a judge that always prefers the first
	comparator := testutils.NewFakeComparator(testutils.AlwaysFirst)
	tour := NewTournament(NewRunner(4), comparator, newCache(), newTestSession())

	// When ranking for the top 1
	report := tour.Rank(context.Background(), pool(4), 1)

	// Then p0 wins every match it plays and is the champion
	require.NotNil(t, report.Bracket)
	assert.Equal(t, domain.CandidateID(0), report.Bracket.Champion)
	require.NotNil(t, report.Bracket.RunnerUp)
	assert.Equal(t, domain.CandidateID(2), *report.Bracket.RunnerUp)
	assert.Equal(t, domain.LossGraph{1: 0, 3: 2, 2: 0}, report.Bracket.LossGraph)

	require.Len(t, report.Standings, 1)
	assert.Equal(t, "p0", report.Standings[0].Candidate.Text)
	assert.Equal(t, 3, report.Standings[0].Wins)
}

func TestTournament_FullPlayoffOrder(t *testing.T) {
	comparator := testutils.NewFakeComparator(testutils.AlwaysFirst)
	tour := NewTournament(NewRunner(2), comparator, newCache(), newTestSession())

	report := tour.Rank(context.Background(), pool(4), 10)

	// Field is champion, runner-up, then losers to either in pool order.
	assert.Equal(t, []domain.CandidateID{0, 2, 1, 3}, standingIDs(report.Standings))
	wins := make([]int, len(report.Standings))
	for i, s := range report.Standings {
		wins[i] = s.Wins
		assert.Equal(t, 3, s.Games)
	}
	assert.Equal(t, []int{3, 2, 1, 0}, wins)

	// Bracket played 3 matches; the playoff reused all three and judged 3 new pairs.
	assert.Equal(t, 6, comparator.Calls())
	assert.Equal(t, int64(6), report.JudgeCalls)
	assert.Equal(t, 9, report.Matches)
}

func TestTournament_PowerOfTwoRounds(t *testing.T) {
	for _, m := range []int{2, 4, 8, 16, 32} {
		t.Run(fmt.Sprintf("M=%d", m), func(t *testing.T) {
			strength := make(map[string]int)
			for i, s := range texts(m) {
				strength[s] = (i * 7) % m
			}
			comparator := testutils.NewFakeComparator(testutils.ByStrength(strength))
			tour := NewTournament(NewRunner(8), comparator, newCache(), newTestSession())

			report := tour.Rank(context.Background(), pool(m), 3)

			br := report.Bracket
			require.NotNil(t, br)
			assert.Len(t, br.Rounds, bits.Len(uint(m))-1, "ceil(log2 M) rounds")
			assert.Empty(t, br.Byes)
			_, lost := br.LossGraph[br.Champion]
			assert.False(t, lost, "Champion has no recorded loss")
			assert.Len(t, br.LossGraph, m-1, "Every other candidate lost exactly once")
			assert.Len(t, report.Standings, min(3, len(Backfill(pool(m), *br))))
		})
	}
}

func TestTournament_OddPoolGivesBye(t *testing.T) {
	// Given three candidates where p2 is strongest
	comparator := testutils.NewFakeComparator(testutils.ByStrength(map[string]int{"p2": 5}))
	tour := NewTournament(NewRunner(1), comparator, newCache(), newTestSession())

	report := tour.Rank(context.Background(), pool(3), 3)

	// Then p2 advances to round 2 without playing in round 1
	br := report.Bracket
	require.Len(t, br.Rounds, 2)
	assert.Equal(t, []domain.CandidateID{0, 1, 2}, br.Rounds[0])
	assert.Equal(t, []domain.CandidateID{0, 2}, br.Rounds[1])
	assert.Equal(t, []domain.CandidateID{2}, br.Byes)
	assert.Equal(t, domain.CandidateID(2), br.Champion)
	assert.Equal(t, domain.LossGraph{1: 0, 0: 2}, br.LossGraph, "The bye candidate played only the final")

	assert.Equal(t, domain.CandidateID(2), report.Standings[0].Candidate.ID)
}

func TestTournament_EdgeSizes(t *testing.T) {
	t.Run("empty pool", func(t *testing.T) {
		comparator := testutils.NewFakeComparator(testutils.AlwaysFirst)
		report := NewTournament(NewRunner(1), comparator, newCache(), newTestSession()).
			Rank(context.Background(), nil, 3)

		assert.Empty(t, report.Standings)
		assert.Nil(t, report.Bracket)
		assert.Zero(t, comparator.Calls())
	})

	t.Run("single candidate", func(t *testing.T) {
		comparator := testutils.NewFakeComparator(testutils.AlwaysFirst)
		report := NewTournament(NewRunner(1), comparator, newCache(), newTestSession()).
			Rank(context.Background(), pool(1), 3)

		require.Len(t, report.Standings, 1)
		assert.Equal(t, "p0", report.Standings[0].Candidate.Text)
		assert.Nil(t, report.Bracket.RunnerUp)
		assert.Empty(t, report.Bracket.Rounds)
		assert.Zero(t, comparator.Calls(), "No matches are played")
	})

	t.Run("zero k", func(t *testing.T) {
		comparator := testutils.NewFakeComparator(testutils.AlwaysFirst)
		report := NewTournament(NewRunner(1), comparator, newCache(), newTestSession()).
			Rank(context.Background(), pool(4), 0)

		assert.Empty(t, report.Standings)
	})
}

func TestTournament_JudgeErrorsDefaultToFirst(t *testing.T) {
	comparator := testutils.NewFakeComparator(func(string, string) (domain.Verdict, error) {
		return domain.SecondWins, &domain.JudgeError{Op: "compare", Attempts: 3, Err: errors.New("503")}
	})
	sess := newTestSession()
	tour := NewTournament(NewRunner(3), comparator, newCache(), sess)

	report := tour.Rank(context.Background(), pool(4), 4)

	// Every error resolves as first-wins, so the result matches AlwaysFirst.
	assert.Equal(t, domain.CandidateID(0), report.Bracket.Champion)
	assert.Equal(t, []domain.CandidateID{0, 2, 1, 3}, standingIDs(report.Standings))
	assert.Contains(t, sess.Log.String(), "using default")
}

func TestTournament_EachPairJudgedOnce(t *testing.T) {
	strength := map[string]int{}
	for i, s := range texts(13) {
		strength[s] = (i * 5) % 13
	}
	comparator := testutils.NewFakeComparator(testutils.ByStrength(strength))
	tour := NewTournament(NewRunner(6), comparator, newCache(), newTestSession())

	tour.Rank(context.Background(), pool(13), 5)

	names := texts(13)
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			assert.LessOrEqual(t, comparator.PairCalls(names[i], names[j]), 1, "pair %d,%d", i, j)
		}
	}
}

func TestBackfill(t *testing.T) {
	// Given an eight-player bracket won by 4 over 0
	runnerUp := domain.CandidateID(0)
	br := BracketResult{
		Champion: 4,
		RunnerUp: &runnerUp,
		LossGraph: domain.LossGraph{
			1: 0, 3: 2, 2: 0,
			5: 4, 7: 6, 6: 4,
			0: 4,
		},
	}

	field := Backfill(pool(8), br)

	// Then the champion and runner-up lead, followed by their victims in pool order
	assert.Equal(t, []domain.CandidateID{4, 0, 1, 2, 5, 6}, domain.IDs(field))
}

func TestBackfill_NoRunnerUp(t *testing.T) {
	field := Backfill(pool(1), BracketResult{Champion: 0, LossGraph: domain.LossGraph{}})
	assert.Equal(t, []domain.CandidateID{0}, domain.IDs(field))
}
