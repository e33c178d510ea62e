// Package fetch retrieves the upstream roadmap feed with timeout, rate
// limiting, and retrying with exponential backoff.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/roadwatch-io/roadwatch/internal/roadmap"
)

// Sentinel errors for fetch failures.
var (
	// ErrTimeout is returned when the request exceeds the configured timeout.
	ErrTimeout = errors.New("request timed out")
)

// HTTPError reports a non-2xx upstream response. Retried: upstream 5xx and
// 429 conditions are routinely transient.
type HTTPError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
}

// ParseError reports a response body that is not valid JSON. Retried:
// truncated or corrupted bodies from upstream are plausibly transient.
type ParseError struct {
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("response body is not valid JSON: %v", e.Err)
}

// Unwrap returns the underlying JSON error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a fetch failure is worth another attempt.
//
// Shape failures are permanent: a payload that fails structural validation
// will fail it again. Caller cancellation is honored, not retried. Everything
// else (HTTP status, timeout, parse, transport errors) is treated as
// transient.
func Retryable(err error) bool {
	var shapeErr *roadmap.ShapeError
	if errors.As(err, &shapeErr) {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	return true
}
