package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-bracket/infrastructure/llm"
)

// errUsage marks errors caused by how the command was invoked.
var errUsage = errors.New("usage error")

// dependencies are seams for tests. The zero value uses the real providers.
type dependencies struct {
	// providers replaces llm.DefaultProviders when non-nil.
	providers map[string]llm.ProviderConfig
	// estimator replaces the tiktoken estimator when non-nil.
	estimator llm.TokenEstimator
	// env replaces the process environment when non-nil.
	env map[string]string
}

func newRootCommand(deps dependencies) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "bracket",
		Short: "Generate answers with an LLM and rank them with LLM judges",
		Long: `bracket sends one instruction to a model several times, scores the
candidates independently, ranks the best of them with pairwise judge
matches (single elimination or round-robin Elo) and prints the top picks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			cmd.SetContext(clog.WithLogger(cmd.Context(), clog.New(handler)))
		},
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newRunCommand(deps),
		newConfigCommand(deps),
		newVersionCommand(),
	)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "bracket "+version)
		},
	}
}
