package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

var (
	_ ports.Generator  = (*Generator)(nil)
	_ ports.Scorer     = (*Scorer)(nil)
	_ ports.Comparator = (*Comparator)(nil)
)

// complete sends one prompt under the retry policy. The returned usage
// sums every attempt, including failed ones.
func complete(ctx context.Context, client ports.LLMClient, opts Options, op, prompt string) (ports.Completion, error) {
	temp := opts.Temperature
	req := ports.CompletionRequest{Prompt: prompt, Temperature: &temp, MaxTokens: opts.MaxTokens}
	var spent domain.Usage
	c, err := Retry(ctx, opts.Retry, op, func(ctx context.Context) (ports.Completion, error) {
		c, err := client.Complete(ctx, req)
		spent = spent.Add(c.Usage)
		return c, err
	})
	c.Usage = spent
	return c, err
}

// Generator produces candidates by sending the instruction n times.
type Generator struct {
	client  ports.LLMClient
	opts    Options
	workers int
}

// NewGenerator creates a Generator issuing at most workers requests at once.
func NewGenerator(client ports.LLMClient, opts Options, workers int) *Generator {
	return &Generator{client: client, opts: opts, workers: max(workers, 1)}
}

// Generate returns the non-empty completions in request order. Items that
// fail after retries or come back empty are dropped and logged. An error is
// returned only when nothing was produced.
func (g *Generator) Generate(ctx context.Context, instruction string, n int) ([]string, domain.Usage, error) {
	if n <= 0 {
		return nil, domain.Usage{}, nil
	}

	texts := make([]string, n)
	var (
		mu      sync.Mutex
		usage   domain.Usage
		failed  []error
		logger  = clog.FromContext(ctx)
		grp     errgroup.Group
		dropped int
	)
	grp.SetLimit(g.workers)
	for i := range n {
		grp.Go(func() error {
			c, err := complete(ctx, g.client, g.opts, "generate", instruction)

			mu.Lock()
			defer mu.Unlock()
			usage = usage.Add(c.Usage)
			switch text := strings.TrimSpace(c.Text); {
			case err != nil:
				failed = append(failed, err)
				logger.With("index", i).With("error", err.Error()).Warn("generation dropped")
			case text == "":
				dropped++
				logger.With("index", i).Warn("empty generation dropped")
			default:
				texts[i] = text
			}
			return nil
		})
	}
	_ = grp.Wait()

	out := make([]string, 0, n)
	for _, t := range texts {
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		err := fmt.Errorf("all %d generations failed (%d empty)", n, dropped)
		return nil, usage, errors.Join(append([]error{err}, failed...)...)
	}
	return out, usage, nil
}

// Scorer rates one candidate per call.
type Scorer struct {
	client ports.LLMClient
	opts   Options
}

// NewScorer creates a Scorer.
func NewScorer(client ports.LLMClient, opts Options) *Scorer {
	return &Scorer{client: client, opts: opts}
}

// Score asks for one score per criterion and parses the verdict.
func (s *Scorer) Score(
	ctx context.Context,
	instruction string,
	criteria []string,
	candidate string,
) (domain.ScoreVerdict, domain.Usage, error) {
	prompt, err := renderScorePrompt(s.opts, instruction, criteria, candidate)
	if err != nil {
		return domain.ScoreVerdict{}, domain.Usage{}, err
	}
	c, err := complete(ctx, s.client, s.opts, "score", prompt)
	if err != nil {
		return domain.ScoreVerdict{}, c.Usage, err
	}
	v, err := ParseScore(c.Text)
	return v, c.Usage, err
}

// Comparator asks which of two candidates is better.
type Comparator struct {
	client ports.LLMClient
	opts   Options
}

// NewComparator creates a Comparator.
func NewComparator(client ports.LLMClient, opts Options) *Comparator {
	return &Comparator{client: client, opts: opts}
}

// Compare presents a as player A and b as player B.
func (c *Comparator) Compare(
	ctx context.Context,
	instruction string,
	criteria []string,
	a, b string,
) (domain.Verdict, domain.Usage, error) {
	prompt, err := renderPairwisePrompt(c.opts, instruction, criteria, a, b)
	if err != nil {
		return domain.FirstWins, domain.Usage{}, err
	}
	resp, err := complete(ctx, c.client, c.opts, "compare", prompt)
	if err != nil {
		return domain.FirstWins, resp.Usage, err
	}
	v, err := ParseVerdict(resp.Text)
	return v, resp.Usage, err
}
