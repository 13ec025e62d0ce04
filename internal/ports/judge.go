// Package ports declares the interfaces the ranking core consumes. Concrete
// implementations live under infrastructure/.
package ports

import (
	"context"

	"github.com/ahrav/go-bracket/internal/domain"
)

// Generator produces candidate texts for one instruction.
// Implementations may retry items internally and drop items that cannot be
// recovered, so the returned slice may be shorter than n.
type Generator interface {
	Generate(ctx context.Context, instruction string, n int) ([]string, domain.Usage, error)
}

// Scorer rates a single candidate against the ordered criteria.
// A returned error is terminal: retries have already been exhausted or the
// verdict could not be parsed.
type Scorer interface {
	Score(
		ctx context.Context,
		instruction string,
		criteria []string,
		candidate string,
	) (domain.ScoreVerdict, domain.Usage, error)
}

// Comparator decides which of two candidates better satisfies the criteria.
// The verdict is relative to the argument order: FirstWins means a won.
type Comparator interface {
	Compare(
		ctx context.Context,
		instruction string,
		criteria []string,
		a, b string,
	) (domain.Verdict, domain.Usage, error)
}
