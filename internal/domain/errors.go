package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur while generating and ranking
// candidates.
var (
	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrTransientJudge indicates that a judge call kept failing until its
	// retry budget was exhausted.
	ErrTransientJudge = errors.New("transient judge failure")

	// ErrMalformedVerdict indicates that the judge responded but its output
	// could not be parsed into a verdict.
	ErrMalformedVerdict = errors.New("malformed verdict")

	// ErrBudgetExceeded indicates that a call would exceed the configured
	// token or call budget.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrNoCandidates indicates that generation produced nothing to rank.
	ErrNoCandidates = errors.New("no candidates generated")
)

// PreviewLimit is the number of characters kept when offending judge output
// is written to the process log.
const PreviewLimit = 100

// Preview flattens newlines and truncates s to limit runes, appending an
// ellipsis when something was cut.
func Preview(s string, limit int) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match every validation failure against
// ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// TaskError associates a terminal task failure with the input that caused it.
type TaskError struct {
	// Stage names the batch the task belonged to (score, bracket, ...).
	Stage string

	// Index is the position of the task in the submitted batch.
	Index int

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface for TaskError.
func (e *TaskError) Error() string {
	return fmt.Sprintf("task error: stage=%s, index=%d, err=%v", e.Stage, e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *TaskError) Unwrap() error { return e.Err }

// JudgeError reports a judge call that failed after all retry attempts.
type JudgeError struct {
	// Op is the judge operation (generate, score, compare).
	Op string

	// Attempts is the number of calls made before giving up.
	Attempts int

	// Err is the last error observed.
	Err error
}

// Error implements the error interface for JudgeError.
func (e *JudgeError) Error() string {
	return fmt.Sprintf("judge error: op=%s, attempts=%d, err=%v", e.Op, e.Attempts, e.Err)
}

// Unwrap exposes both the transient sentinel and the last underlying error.
func (e *JudgeError) Unwrap() []error { return []error{ErrTransientJudge, e.Err} }

// MalformedVerdictError carries the raw judge output that failed to parse.
type MalformedVerdictError struct {
	// Raw is the unmodified judge output.
	Raw string

	// Reason describes which parse stage rejected it.
	Reason string
}

// Error implements the error interface. The raw output is truncated.
func (e *MalformedVerdictError) Error() string {
	return fmt.Sprintf("malformed verdict: %s: %q", e.Reason, Preview(e.Raw, PreviewLimit))
}

// Unwrap returns ErrMalformedVerdict.
func (e *MalformedVerdictError) Unwrap() error { return ErrMalformedVerdict }

// NewMalformedVerdictError creates a MalformedVerdictError.
func NewMalformedVerdictError(raw, reason string) *MalformedVerdictError {
	return &MalformedVerdictError{Raw: raw, Reason: reason}
}

// BudgetExceededError reports which budget limit a call would cross.
type BudgetExceededError struct {
	// LimitType is "tokens" or "calls".
	LimitType string

	// Limit is the configured maximum.
	Limit int64

	// Used is the amount consumed before the rejected call.
	Used int64

	// Requested is the amount the rejected call needed.
	Requested int64
}

// Error implements the error interface for BudgetExceededError.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: %s limit=%d, used=%d, requested=%d",
		e.LimitType, e.Limit, e.Used, e.Requested)
}

// Unwrap returns ErrBudgetExceeded.
func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }
