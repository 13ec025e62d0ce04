package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-bracket/internal/domain"
)

func TestMatchCache_LookupStore(t *testing.T) {
	c := NewMatchCache()

	// Given an empty cache
	_, ok := c.Lookup(domain.NewMatchKey(1, 2))
	assert.False(t, ok, "Empty cache should miss")

	// When a verdict is stored for (2, 1)
	key := domain.NewMatchKey(2, 1)
	c.Store(key, key.Orient(2, domain.FirstWins))

	// Then (1, 2) hits and names 2 the winner
	v, ok := c.Lookup(domain.NewMatchKey(1, 2))
	require.True(t, ok)
	winner, loser := key.Winner(v)
	assert.Equal(t, domain.CandidateID(2), winner)
	assert.Equal(t, domain.CandidateID(1), loser)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestMatchCache_LastWriteWins(t *testing.T) {
	c := NewMatchCache()
	key := domain.NewMatchKey(0, 1)

	c.Store(key, domain.FirstWins)
	c.Store(key, domain.SecondWins)

	v, ok := c.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, domain.SecondWins, v)
	assert.Equal(t, 1, c.Len())
}

func TestMatchCache_ConcurrentAccess(t *testing.T) {
	c := NewMatchCache()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		for j := i + 1; j < 20; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				key := domain.NewMatchKey(domain.CandidateID(j), domain.CandidateID(i))
				c.Store(key, domain.FirstWins)
				_, _ = c.Lookup(key)
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, 20*19/2, c.Len())
}

func TestFactory_ReturnsFreshCaches(t *testing.T) {
	a, b := Factory(), Factory()
	a.Store(domain.NewMatchKey(0, 1), domain.FirstWins)

	_, ok := b.Lookup(domain.NewMatchKey(0, 1))
	assert.False(t, ok, "Caches must not be shared between invocations")
}
