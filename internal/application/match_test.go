package application

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-bracket/infrastructure/cache"
	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/testutils"
)

func TestMatchPlayer_ReversedPairHitsCache(t *testing.T) {
	comparator := testutils.NewFakeComparator(testutils.AlwaysFirst)
	player := newMatchPlayer(comparator, cache.NewMatchCache(), newTestSession(), "test")
	c := pool(2)

	first := player.play(context.Background(), Pairing{A: c[1], B: c[0]})
	second := player.play(context.Background(), Pairing{A: c[0], B: c[1]})

	assert.Equal(t, 1, comparator.Calls(), "compare(B,A) after compare(A,B) must not reach the judge")
	assert.Equal(t, SourceJudge, first.Source)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, domain.CandidateID(1), first.Winner)
	assert.Equal(t, first.Winner, second.Winner, "Cached verdict keeps its orientation")
}

func TestMatchPlayer_ConcurrentReversedCalls(t *testing.T) {
	// Given a judge that blocks until released
	comparator := testutils.NewFakeComparator(testutils.AlwaysFirst)
	comparator.Gate = make(chan struct{})
	mc := cache.NewMatchCache()
	player := newMatchPlayer(comparator, mc, newTestSession(), "test")
	c := pool(2)

	// When (A,B) and (B,A) are played concurrently
	var wg sync.WaitGroup
	results := make([]MatchResult, 2)
	for i, p := range []Pairing{{A: c[0], B: c[1]}, {A: c[1], B: c[0]}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = player.play(context.Background(), p)
		}()
	}
	close(comparator.Gate)
	wg.Wait()

	// Then both agree, the judge was called at most twice, and the cache is consistent
	assert.LessOrEqual(t, comparator.Calls(), 2)
	assert.Equal(t, results[0].Winner, results[1].Winner)
	v, ok := mc.Lookup(domain.NewMatchKey(0, 1))
	require.True(t, ok)
	winner, _ := domain.NewMatchKey(0, 1).Winner(v)
	assert.Equal(t, results[0].Winner, winner)
}

func TestMatchPlayer_DefaultIsCached(t *testing.T) {
	calls := 0
	comparator := testutils.NewFakeComparator(func(string, string) (domain.Verdict, error) {
		calls++
		return domain.SecondWins, domain.NewMalformedVerdictError("¯\\_(ツ)_/¯", "no verdict")
	})
	sess := newTestSession()
	player := newMatchPlayer(comparator, cache.NewMatchCache(), sess, "test")
	c := pool(2)

	res := player.play(context.Background(), Pairing{A: c[1], B: c[0]})
	again := player.play(context.Background(), Pairing{A: c[0], B: c[1]})

	assert.Equal(t, SourceDefault, res.Source)
	assert.Equal(t, domain.CandidateID(1), res.Winner, "First presented candidate wins by default")
	assert.Equal(t, domain.CandidateID(1), again.Winner)
	assert.Equal(t, 1, calls)
	assert.Contains(t, sess.Log.String(), "¯\\\\_(ツ)_/¯")
}

func TestRoundRobin(t *testing.T) {
	assert.Nil(t, roundRobin(pool(1)))
	pairs := roundRobin(pool(4))
	require.Len(t, pairs, 6)
	assert.Equal(t, domain.CandidateID(0), pairs[0].A.ID)
	assert.Equal(t, domain.CandidateID(1), pairs[0].B.ID)
	assert.Equal(t, domain.CandidateID(2), pairs[5].A.ID)
	assert.Equal(t, domain.CandidateID(3), pairs[5].B.ID)
}
