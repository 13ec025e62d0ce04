package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ahrav/go-bracket/internal/application"
	"github.com/ahrav/go-bracket/internal/domain"
)

// pickSeparator goes between top picks in text output.
var pickSeparator = "\n\n\n" + strings.Repeat("=", 53) + "\n\n\n"

const (
	formatText = "text"
	formatJSON = "json"
)

type runOptions struct {
	configPath      string
	instruction     string
	instructionFile string
	format          string
	metricsAddr     string

	criteria      []string
	generations   int
	poolSize      int
	topK          int
	workers       int
	strategy      string
	noScoreFilter bool
	noRanking     bool
	positionSwap  bool
}

func newRunCommand(deps dependencies) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [instruction]",
		Short: "Generate candidates for an instruction and rank them",
		Long: `Generate candidates for an instruction and rank them.

The instruction is taken from the argument, --instruction, --instruction-file
or standard input, in that order. Progress is written to standard error and
the top picks to standard output.`,
		Example: `  bracket run "Write a haiku about autumn"
  bracket run --instruction-file prompt.txt --strategy elo --top-k 5
  echo "Summarize the plot of Hamlet" | bracket run --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if opts.instruction != "" {
					return usageErrorf("give the instruction as an argument or with --instruction, not both")
				}
				opts.instruction = args[0]
			}
			return runBracket(cmd, &opts, deps)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	f.StringVarP(&opts.instruction, "instruction", "i", "", "Instruction to answer")
	f.StringVar(&opts.instructionFile, "instruction-file", "", "Read the instruction from a file")
	f.StringVarP(&opts.format, "format", "o", formatText, "Output format: text or json")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run, e.g. :9090")

	f.StringSliceVar(&opts.criteria, "criteria", nil, "Evaluation criteria, in order of importance")
	f.IntVarP(&opts.generations, "generations", "n", 0, "Number of candidates to generate")
	f.IntVar(&opts.poolSize, "pool-size", 0, "Candidates kept by the score filter")
	f.IntVarP(&opts.topK, "top-k", "k", 0, "Number of top picks")
	f.IntVar(&opts.workers, "workers", 0, "Maximum concurrent judge calls")
	f.StringVar(&opts.strategy, "strategy", "", "Ranking strategy: tournament or elo")
	f.BoolVar(&opts.noScoreFilter, "no-score-filter", false, "Skip the score filter")
	f.BoolVar(&opts.noRanking, "no-ranking", false, "Skip pairwise ranking")
	f.BoolVar(&opts.positionSwap, "position-swap", false, "Judge every match in both orders")
	return cmd
}

// applyFlags overrides cfg with the flags the user actually set.
func applyFlags(cmd *cobra.Command, opts *runOptions, cfg *application.Config) {
	changed := cmd.Flags().Changed
	if changed("criteria") {
		cfg.Criteria = opts.criteria
	}
	if changed("generations") {
		cfg.Generation.NumGenerations = opts.generations
	}
	if changed("pool-size") {
		cfg.ScoreFilter.PoolSize = opts.poolSize
	}
	if changed("top-k") {
		cfg.Ranking.TopK = opts.topK
	}
	if changed("workers") {
		cfg.MaxWorkers = opts.workers
	}
	if changed("strategy") {
		cfg.Ranking.Strategy = opts.strategy
	}
	if changed("no-score-filter") {
		cfg.ScoreFilter.Enabled = !opts.noScoreFilter
	}
	if changed("no-ranking") {
		cfg.Ranking.Enabled = !opts.noRanking
	}
	if changed("position-swap") {
		cfg.Ranking.PositionSwap = opts.positionSwap
	}
}

// readInstruction returns the instruction from the first source that is set.
func readInstruction(opts *runOptions, stdin io.Reader) (string, error) {
	var text string
	switch {
	case opts.instruction != "":
		text = opts.instruction
	case opts.instructionFile != "":
		data, err := os.ReadFile(filepath.Clean(opts.instructionFile))
		if err != nil {
			return "", fmt.Errorf("failed to read instruction file: %w", err)
		}
		text = string(data)
	case isTerminal(stdin):
		return "", usageErrorf("no instruction given: pass it as an argument, with --instruction or --instruction-file, or pipe it to stdin")
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read instruction from stdin: %w", err)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", usageErrorf("instruction is empty")
	}
	return text, nil
}

func runBracket(cmd *cobra.Command, opts *runOptions, deps dependencies) error {
	if opts.format != formatText && opts.format != formatJSON {
		return usageErrorf("unknown format %q, want text or json", opts.format)
	}

	cfg, err := loadConfig(cmd, opts.configPath, deps)
	if err != nil {
		return err
	}
	applyFlags(cmd, opts, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	instruction, err := readInstruction(opts, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, deps)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := clog.FromContext(ctx)

	if opts.metricsAddr != "" {
		shutdown := serveMetrics(ctx, opts.metricsAddr, a.metrics.Handler())
		defer shutdown()
	}

	report, runErr := a.pipeline.Run(ctx, application.Request{Instruction: instruction}, progressPrinter(cmd.ErrOrStderr()))
	if report == nil {
		return runErr
	}
	if runErr != nil {
		logger.Warn("Run ended early, printing partial results", "error", runErr)
	}

	if err := writeReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.format, report); err != nil {
		return errors.Join(runErr, err)
	}
	spent := a.budget.Spent()
	logger.Debug("Run complete", "run_id", report.RunID, "duration", report.Duration,
		"models", a.registry.Models(), "budget_calls", spent.Calls, "budget_tokens", spent.Tokens)
	return runErr
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progressPrinter renders pipeline events as lines on w. On a terminal,
// progress updates redraw a single line.
func progressPrinter(w io.Writer) application.EventSink {
	tty := isTerminal(w)
	inPlace := false
	return func(ev application.Event) {
		if ev.Kind == application.EventProgress && tty {
			fmt.Fprintf(w, "\r\033[K%s", ev.Message)
			inPlace = true
			return
		}
		if inPlace {
			fmt.Fprintln(w)
			inPlace = false
		}

		switch ev.Kind {
		case application.EventScored:
			fmt.Fprintln(w, ev.Message)
			for _, b := range ev.Histogram {
				fmt.Fprintf(w, "  [%.2f, %.2f): %d\n", b.Low, b.High, b.Count)
			}
		default:
			fmt.Fprintln(w, ev.Message)
		}
	}
}

func writeReport(out, errOut io.Writer, format string, report *application.Report) error {
	if format == formatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if _, err := fmt.Fprintln(out, joinPicks(report.TopPicks)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(errOut, usageLines(report.Usage.Usage))
	return err
}

func joinPicks(picks []domain.Candidate) string {
	texts := make([]string, len(picks))
	for i, p := range picks {
		texts[i] = p.Text
	}
	return strings.Join(texts, pickSeparator)
}

func usageLines(u domain.Usage) string {
	return fmt.Sprintf("Prompt tokens: %d\nCompletion tokens: %d\nTotal tokens: %d",
		u.PromptTokens, u.CompletionTokens, u.Total())
}

// serveMetrics serves handler on addr under /metrics until the returned
// function is called.
func serveMetrics(ctx context.Context, addr string, handler http.Handler) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger := clog.FromContext(ctx)
	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}
}
