package application

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-bracket/internal/domain"
	"github.com/ahrav/go-bracket/internal/ports"
)

// Progress describes a runner batch after one more task completed.
type Progress struct {
	Stage     string        `json:"stage"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"`
}

// String renders the progress as "stage 3/10 [00:05<00:12]".
func (p Progress) String() string {
	return fmt.Sprintf("%s %d/%d [%s<%s]",
		p.Stage, p.Completed, p.Total, FormatClock(p.Elapsed), FormatClock(p.Remaining))
}

// FormatClock renders d as H:MM:SS when it is at least an hour, else MM:SS.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// estimateRemaining extrapolates the mean time per completed task.
func estimateRemaining(elapsed time.Duration, completed, total int) time.Duration {
	if completed <= 0 || completed >= total {
		return 0
	}
	return elapsed / time.Duration(completed) * time.Duration(total-completed)
}

// ProgressFunc receives one Progress per completed task. It is called from
// the goroutine that invoked the runner.
type ProgressFunc func(Progress)

// Runner executes batches of independent tasks with bounded parallelism.
// A single Runner serves every stage of a pipeline run.
type Runner struct {
	maxWorkers int
	progress   ProgressFunc
	metrics    ports.MetricsCollector
	now        func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) RunnerOption {
	return func(r *Runner) { r.progress = fn }
}

// WithRunnerMetrics records task outcomes and batch latency.
func WithRunnerMetrics(m ports.MetricsCollector) RunnerOption {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithClock overrides the time source used for progress.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner returns a Runner with at most maxWorkers tasks in flight.
// Non-positive values are treated as 1.
func NewRunner(maxWorkers int, opts ...RunnerOption) *Runner {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	r := &Runner{
		maxWorkers: maxWorkers,
		progress:   func(Progress) {},
		metrics:    ports.NopMetrics{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxWorkers returns the concurrency bound.
func (r *Runner) MaxWorkers() int { return r.maxWorkers }

// Outcome is the result of one task. Err is a *domain.TaskError when the
// task failed or was never started because ctx was done.
type Outcome[T, R any] struct {
	Index  int
	Task   T
	Result R
	Err    error
}

// Each runs fn for every task and calls visit with each outcome in
// completion order. visit runs on the calling goroutine, so it may mutate
// state owned by the caller without locking. A failing task never stops the
// batch. Once ctx is done, tasks that have not started are reported with the
// context error instead of being run; tasks already running finish.
func Each[T, R any](
	ctx context.Context,
	r *Runner,
	stage string,
	tasks []T,
	fn func(context.Context, T) (R, error),
	visit func(Outcome[T, R]),
) {
	total := len(tasks)
	if total == 0 {
		return
	}

	// Buffered to total so workers never block on a slow visitor.
	results := make(chan Outcome[T, R], total)

	var g errgroup.Group
	g.SetLimit(r.maxWorkers)
	go func() {
		for i, task := range tasks {
			g.Go(func() error {
				out := Outcome[T, R]{Index: i, Task: task}
				if err := ctx.Err(); err != nil {
					out.Err = &domain.TaskError{Stage: stage, Index: i, Err: err}
				} else if res, err := fn(ctx, task); err != nil {
					out.Err = &domain.TaskError{Stage: stage, Index: i, Err: err}
				} else {
					out.Result = res
				}
				results <- out
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	start := r.now()
	completed := 0
	for out := range results {
		completed++
		status := "ok"
		if out.Err != nil {
			status = "error"
		}
		r.metrics.RecordCounter(ports.MetricRunnerTasks, 1, map[string]string{
			ports.LabelStage:  stage,
			ports.LabelStatus: status,
		})

		elapsed := r.now().Sub(start)
		r.progress(Progress{
			Stage:     stage,
			Completed: completed,
			Total:     total,
			Elapsed:   elapsed,
			Remaining: estimateRemaining(elapsed, completed, total),
		})
		visit(out)
	}
	r.metrics.RecordLatency(ports.MetricStageDuration, r.now().Sub(start), map[string]string{
		ports.LabelStage: stage,
	})
}

// Run is Each with the outcomes collected in completion order.
func Run[T, R any](
	ctx context.Context,
	r *Runner,
	stage string,
	tasks []T,
	fn func(context.Context, T) (R, error),
) []Outcome[T, R] {
	out := make([]Outcome[T, R], 0, len(tasks))
	Each(ctx, r, stage, tasks, fn, func(o Outcome[T, R]) { out = append(out, o) })
	return out
}
