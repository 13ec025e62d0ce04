// Command bracket generates candidate answers to an instruction with an LLM
// and ranks them with LLM judges.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ahrav/go-bracket/internal/domain"
)

// Exit codes for different failure modes.
const (
	ExitSuccess     = 0
	ExitError       = 1   // Runtime error
	ExitConfig      = 2   // Invalid configuration or usage
	ExitInterrupted = 130 // SIGINT or SIGTERM
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand(dependencies{}).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, domain.ErrInvalidConfiguration), errors.Is(err, errUsage):
		return ExitConfig
	default:
		return ExitError
	}
}
