package errors

import (
	"fmt"
	"time"
)

// HTTPError is a non-2xx response from an upstream API.
type HTTPError struct {
	StatusCode int
	Message    string
	Endpoint   string
	// RetryAfter is the server's requested delay, zero if none was sent.
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("HTTP %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// TimeoutError indicates a single upstream call ran out of time.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}
