package llm

import (
	"fmt"
	"net/url"
	"time"
)

// Parameter ranges shared by the providers.
const (
	MinTemperature = 0.0
	// MaxTemperature is the widest range any provider accepts (OpenAI, Gemini).
	MaxTemperature = 2.0

	MinTimeout = 1 * time.Second
	MaxTimeout = 10 * time.Minute
)

// ValidateBaseURL normalizes an endpoint override. It must be an absolute
// http or https URL with a host. An empty string is returned unchanged.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	switch {
	case u.Scheme == "":
		return "", fmt.Errorf("URL must include a scheme (e.g., http:// or https://)")
	case u.Scheme != "http" && u.Scheme != "https":
		return "", fmt.Errorf("URL scheme must be http or https, but got: %s", u.Scheme)
	case u.Host == "":
		return "", fmt.Errorf("URL must include a host")
	}
	return u.String(), nil
}

// ValidateTimeout clamps timeout to [MinTimeout, MaxTimeout]. Non-positive
// values return zero, meaning no client timeout.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return max(MinTimeout, min(timeout, MaxTimeout))
}

// ClampFloat64 restricts val to [lo, hi].
func ClampFloat64(val, lo, hi float64) float64 {
	return max(lo, min(val, hi))
}
