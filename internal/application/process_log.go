package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// ProcessLog is the human-readable record of a pipeline run. Every absorbed
// error lands here with a preview of the offending content.
type ProcessLog struct {
	mu    sync.Mutex
	lines []string
}

// Addf appends a formatted line.
func (l *ProcessLog) Addf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

// Lines returns a copy of the log lines.
func (l *ProcessLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// String joins the lines with newlines.
func (l *ProcessLog) String() string { return strings.Join(l.Lines(), "\n") }

// Session holds the state shared by every stage of one pipeline run.
type Session struct {
	Instruction string
	Criteria    []string
	Usage       *domain.UsageTotals
	Log         *ProcessLog
	Metrics     ports.MetricsCollector
}

// NewSession returns a Session with fresh usage totals and log.
func NewSession(instruction string, criteria []string, metrics ports.MetricsCollector) *Session {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Session{
		Instruction: instruction,
		Criteria:    criteria,
		Usage:       &domain.UsageTotals{},
		Log:         &ProcessLog{},
		Metrics:     metrics,
	}
}

// absorb records a judge failure that was replaced by a default.
func (s *Session) absorb(ctx context.Context, what string, err error) {
	clog.FromContext(ctx).With("error", err).Warnf("%s: using default", what)
	var mv *domain.MalformedVerdictError
	if errors.As(err, &mv) {
		s.Log.Addf("%s: could not parse judge output %q, using default", what, domain.Preview(mv.Raw, domain.PreviewLimit))
		return
	}
	s.Log.Addf("%s: %s, using default", what, domain.Preview(err.Error(), domain.PreviewLimit))
}
