package application

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// Match sources reported in MatchResult and metrics.
const (
	SourceCache   = "cache"
	SourceJudge   = "judge"
	SourceDefault = "default"
)

// Pairing is a match in presentation order: A is shown to the judge first.
type Pairing struct {
	A, B domain.Candidate
}

// MatchResult is a resolved pairing.
type MatchResult struct {
	Key    domain.MatchKey
	Winner domain.CandidateID
	Loser  domain.CandidateID
	Source string
}

// CacheFactory returns an empty MatchCache for one ranking invocation.
type CacheFactory func() ports.MatchCache

// matchPlayer resolves pairings through a per-invocation cache. Concurrent
// requests for the same unordered pair share one judge call.
type matchPlayer struct {
	comparator ports.Comparator
	cache      ports.MatchCache
	session    *Session
	stage      string

	sf         singleflight.Group
	judgeCalls atomic.Int64
}

func newMatchPlayer(c ports.Comparator, cache ports.MatchCache, s *Session, stage string) *matchPlayer {
	return &matchPlayer{comparator: c, cache: cache, session: s, stage: stage}
}

type keyedVerdict struct {
	verdict domain.Verdict
	source  string
}

// play resolves p. It never fails: judge errors resolve to FirstWins for
// the presentation order and that default is cached like any verdict.
func (m *matchPlayer) play(ctx context.Context, p Pairing) MatchResult {
	key := domain.NewMatchKey(p.A.ID, p.B.ID)

	kv := keyedVerdict{source: SourceCache}
	if v, ok := m.cache.Lookup(key); ok {
		kv.verdict = v
	} else {
		res, _, _ := m.sf.Do(fmt.Sprintf("%d:%d", key.Low, key.High), func() (any, error) {
			if v, ok := m.cache.Lookup(key); ok {
				return keyedVerdict{verdict: v, source: SourceCache}, nil
			}
			v, src := m.judge(ctx, p)
			stored := key.Orient(p.A.ID, v)
			m.cache.Store(key, stored)
			return keyedVerdict{verdict: stored, source: src}, nil
		})
		kv = res.(keyedVerdict)
	}

	m.session.Metrics.RecordCounter(ports.MetricMatches, 1, map[string]string{
		ports.LabelStage:  m.stage,
		ports.LabelSource: kv.source,
	})
	winner, loser := key.Winner(kv.verdict)
	return MatchResult{Key: key, Winner: winner, Loser: loser, Source: kv.source}
}

// judge asks the comparator and returns a verdict in presentation order.
func (m *matchPlayer) judge(ctx context.Context, p Pairing) (domain.Verdict, string) {
	m.judgeCalls.Add(1)
	v, usage, err := m.comparator.Compare(ctx, m.session.Instruction, m.session.Criteria, p.A.Text, p.B.Text)
	m.session.Usage.Add(usage)
	if err != nil {
		m.session.absorb(ctx, fmt.Sprintf("%s match %d vs %d", m.stage, p.A.ID, p.B.ID), err)
		return domain.FirstWins, SourceDefault
	}
	return v, SourceJudge
}

// defaultResult is used for pairings the runner never started.
func (m *matchPlayer) defaultResult(ctx context.Context, p Pairing, err error) MatchResult {
	m.session.absorb(ctx, fmt.Sprintf("%s match %d vs %d", m.stage, p.A.ID, p.B.ID), err)
	m.session.Metrics.RecordCounter(ports.MetricMatches, 1, map[string]string{
		ports.LabelStage:  m.stage,
		ports.LabelSource: SourceDefault,
	})
	key := domain.NewMatchKey(p.A.ID, p.B.ID)
	return MatchResult{Key: key, Winner: p.A.ID, Loser: p.B.ID, Source: SourceDefault}
}

// playAll resolves pairs through the runner and hands each result, with its
// index in pairs, to visit on the calling goroutine.
func playAll(
	ctx context.Context,
	r *Runner,
	m *matchPlayer,
	stage string,
	pairs []Pairing,
	visit func(i int, p Pairing, res MatchResult),
) {
	Each(ctx, r, stage, pairs,
		func(ctx context.Context, p Pairing) (MatchResult, error) {
			return m.play(ctx, p), nil
		},
		func(o Outcome[Pairing, MatchResult]) {
			res := o.Result
			if o.Err != nil {
				res = m.defaultResult(ctx, o.Task, o.Err)
			}
			visit(o.Index, o.Task, res)
		})
}

// roundRobin lists every unordered pair of field once, in field order.
func roundRobin(field []domain.Candidate) []Pairing {
	if len(field) < 2 {
		return nil
	}
	pairs := make([]Pairing, 0, len(field)*(len(field)-1)/2)
	for i := 0; i < len(field); i++ {
		for j := i + 1; j < len(field); j++ {
			pairs = append(pairs, Pairing{A: field[i], B: field[j]})
		}
	}
	return pairs
}
