// Package testutils provides scripted collaborators for tests.
package testutils

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// FakeGenerator returns fixed texts.
type FakeGenerator struct {
	Texts []string
	Usage domain.Usage
	Err   error
	Calls atomic.Int64
}

// Generate returns up to n of the configured texts.
func (g *FakeGenerator) Generate(ctx context.Context, _ string, n int) ([]string, domain.Usage, error) {
	g.Calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, domain.Usage{}, err
	}
	return g.Texts[:min(n, len(g.Texts))], g.Usage, g.Err
}

// ScoreFunc scores a candidate text.
type ScoreFunc func(candidate string) (domain.ScoreVerdict, error)

// FakeScorer scores candidates with a function and counts calls.
type FakeScorer struct {
	Fn    ScoreFunc
	Usage domain.Usage
	Calls atomic.Int64
}

// NewFakeScorer returns a scorer looking scores up by text. Unknown texts
// score an empty verdict.
func NewFakeScorer(scores map[string][]float64) *FakeScorer {
	return &FakeScorer{Fn: func(c string) (domain.ScoreVerdict, error) {
		return domain.ScoreVerdict{Values: scores[c]}, nil
	}}
}

// Score implements ports.Scorer.
func (s *FakeScorer) Score(ctx context.Context, _ string, _ []string, candidate string) (domain.ScoreVerdict, domain.Usage, error) {
	s.Calls.Add(1)
	if err := ctx.Err(); err != nil {
		return domain.ScoreVerdict{}, domain.Usage{}, err
	}
	v, err := s.Fn(candidate)
	return v, s.Usage, err
}

// CompareFunc decides a pairwise match in presentation order.
type CompareFunc func(a, b string) (domain.Verdict, error)

// FakeComparator decides matches with a function and records every call.
type FakeComparator struct {
	Fn    CompareFunc
	Usage domain.Usage

	// Gate, when set, is received from before each call returns.
	Gate chan struct{}

	mu    sync.Mutex
	pairs map[string]int
	calls atomic.Int64
}

// NewFakeComparator returns a comparator using fn.
func NewFakeComparator(fn CompareFunc) *FakeComparator {
	return &FakeComparator{Fn: fn, pairs: make(map[string]int)}
}

// AlwaysFirst is a CompareFunc where the first presented candidate wins.
func AlwaysFirst(string, string) (domain.Verdict, error) { return domain.FirstWins, nil }

// ByStrength returns a CompareFunc where the text with the higher strength
// wins. Texts missing from the map have strength zero; ties go to a.
func ByStrength(strength map[string]int) CompareFunc {
	return func(a, b string) (domain.Verdict, error) {
		if strength[b] > strength[a] {
			return domain.SecondWins, nil
		}
		return domain.FirstWins, nil
	}
}

// Compare implements ports.Comparator.
func (c *FakeComparator) Compare(ctx context.Context, _ string, _ []string, a, b string) (domain.Verdict, domain.Usage, error) {
	c.calls.Add(1)
	c.mu.Lock()
	if c.pairs == nil {
		c.pairs = make(map[string]int)
	}
	c.pairs[pairKey(a, b)]++
	c.mu.Unlock()

	if c.Gate != nil {
		<-c.Gate
	}
	if err := ctx.Err(); err != nil {
		return domain.FirstWins, domain.Usage{}, err
	}
	v, err := c.Fn(a, b)
	return v, c.Usage, err
}

// Calls returns the number of Compare calls.
func (c *FakeComparator) Calls() int { return int(c.calls.Load()) }

// PairCalls returns how often the unordered pair a, b was compared.
func (c *FakeComparator) PairCalls(a, b string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pairs[pairKey(a, b)]
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%q|%q", a, b)
}

var (
	_ ports.Generator  = (*FakeGenerator)(nil)
	_ ports.Scorer     = (*FakeScorer)(nil)
	_ ports.Comparator = (*FakeComparator)(nil)
)
