// Package cache provides MatchCache implementations.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// MatchCache is an in-memory, mutex-guarded ports.MatchCache.
// Store is last-write-wins.
type MatchCache struct {
	mu      sync.RWMutex
	entries map[domain.MatchKey]domain.Verdict

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMatchCache returns an empty cache.
func NewMatchCache() *MatchCache {
	return &MatchCache{entries: make(map[domain.MatchKey]domain.Verdict)}
}

// Factory returns fresh caches, one per ranking invocation.
func Factory() ports.MatchCache { return NewMatchCache() }

// Lookup returns the verdict stored under key, oriented to the key.
func (c *MatchCache) Lookup(key domain.MatchKey) (domain.Verdict, bool) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Store records v under key, replacing any previous verdict.
func (c *MatchCache) Store(key domain.MatchKey, v domain.Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
}

// Len returns the number of cached pairs.
func (c *MatchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the lookup hit and miss counts.
func (c *MatchCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

var _ ports.MatchCache = (*MatchCache)(nil)
