package application

import (
	"fmt"

	"github.com/ahrav/go-bracket/infrastructure/cache"
	"github.com/ahrav/go-bracket/internal/domain"
)

func newTestSession() *Session {
	return NewSession("Write a haiku about Go.", []string{"Factuality", "Precision"}, nil)
}

// texts returns "p0".."p{n-1}".
func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("p%d", i)
	}
	return out
}

func pool(n int) []domain.Candidate { return domain.NewCandidates(texts(n)) }

func newCache() CacheFactory { return cache.Factory }

func standingIDs(ss []Standing) []domain.CandidateID {
	ids := make([]domain.CandidateID, len(ss))
	for i, s := range ss {
		ids[i] = s.Candidate.ID
	}
	return ids
}
