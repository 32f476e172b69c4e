package gateway

import (
	"errors"
	"fmt"
	"time"
)

// ErrHomeNotSet is wrapped by ConfigurationError when a home-scoped call is
// made before SetHome.
var ErrHomeNotSet = errors.New("home not set")

// APIError is a non-success vendor response, a transport failure, or a
// malformed response body. It is retryable on the next cycle.
type APIError struct {
	Err        error
	Method     string
	Path       string
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Err != nil:
		return fmt.Sprintf("api error: %s %s (status %d): %v", e.Method, e.Path, e.StatusCode, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("api error: %s %s (status %d): %s", e.Method, e.Path, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("api error: %s %s: %v", e.Method, e.Path, e.Err)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// RateLimitError reports an HTTP 429. It is never retried automatically.
type RateLimitError struct {
	ResetTime time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("api rate limit exceeded, resets at %s", e.ResetTime.UTC().Format(time.RFC3339))
}

// RetryAfter returns how long until the quota window resets, measured from now.
func (e *RateLimitError) RetryAfter(now time.Time) time.Duration {
	if d := e.ResetTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// ConfigurationError is a caller mistake detected before any request is sent.
type ConfigurationError struct {
	Err     error
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil && e.Message == "" {
		return "configuration error: " + e.Err.Error()
	}
	return "configuration error: " + e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}
