package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ahrav/go-bracket/internal/domain"
)

var (
	// ErrEmptyAPIKey is returned when a provider that needs a key gets none.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse is returned when a provider answers with no content.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice is returned when an OpenAI-style response has no choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrInvalidModel is returned for a model spec that cannot be routed.
	ErrInvalidModel = errors.New("invalid model")
)

// ErrorType classifies a provider failure. The zero value is unknown.
type ErrorType string

// Provider failure classes. Rate limits, server errors, network errors and
// timeouts are transient; the rest are not worth retrying.
const (
	ErrorTypeUnknown        ErrorType = ""
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeBadRequest     ErrorType = "bad_request"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeServerError    ErrorType = "server_error"
	ErrorTypeContentPolicy  ErrorType = "content_policy"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeCanceled       ErrorType = "canceled"
)

// Transient reports whether a failure of this type may succeed on retry.
func (t ErrorType) Transient() bool {
	switch t {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// ProviderError is a provider failure normalized across SDKs.
type ProviderError struct {
	Type       ErrorType
	Provider   string
	StatusCode int
	Message    string
	// WrappedError is the SDK error, kept for errors.Is and errors.As.
	WrappedError error
}

// Error renders "provider error (HTTP 429) [rate_limit]: message: cause",
// omitting the parts that are empty.
func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" error")
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Type != ErrorTypeUnknown {
		fmt.Fprintf(&b, " [%s]", e.Type)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.WrappedError != nil {
		b.WriteString(": ")
		b.WriteString(e.WrappedError.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.WrappedError }

// IsRetryable reports whether the failure is transient.
func (e *ProviderError) IsRetryable() bool { return e.Type.Transient() }

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// ErrorClassifier turns SDK failures of one provider into ProviderErrors.
type ErrorClassifier struct {
	Provider string
}

// statusTypes maps the HTTP statuses providers document to failure classes.
var statusTypes = map[int]ErrorType{
	http.StatusUnauthorized:        ErrorTypeAuthentication,
	http.StatusForbidden:           ErrorTypeAuthentication,
	http.StatusTooManyRequests:     ErrorTypeRateLimit,
	http.StatusBadRequest:          ErrorTypeBadRequest,
	http.StatusNotFound:            ErrorTypeNotFound,
	http.StatusRequestTimeout:      ErrorTypeTimeout,
	http.StatusInternalServerError: ErrorTypeServerError,
	http.StatusBadGateway:          ErrorTypeServerError,
	http.StatusServiceUnavailable:  ErrorTypeServerError,
	http.StatusGatewayTimeout:      ErrorTypeServerError,
}

// ClassifyHTTPError classifies a failed response by its status code.
// Unlisted 4xx codes are bad requests and unlisted 5xx codes server errors.
// Authentication and rate limit failures get a fixed message so keys and
// quotas never leak into logs.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	errType, ok := statusTypes[statusCode]
	if !ok {
		switch {
		case statusCode >= 500:
			errType = ErrorTypeServerError
		case statusCode >= 400:
			errType = ErrorTypeBadRequest
		}
	}

	switch errType {
	case ErrorTypeAuthentication:
		message = ec.Provider + " authentication failed"
	case ErrorTypeRateLimit:
		message = ec.Provider + " rate limit exceeded"
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyContextError classifies a request that ended with its context.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeCanceled, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}

// IsRetryable reports whether err is a transient failure worth retrying.
// Provider errors decide by their type. Open circuits, exhausted budgets,
// missing keys and cancellation are never retried. Other unclassified
// errors are treated as transient.
func IsRetryable(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrCircuitOpen),
		errors.Is(err, domain.ErrBudgetExceeded),
		errors.Is(err, ErrEmptyAPIKey),
		errors.Is(err, context.Canceled):
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return true
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
