// Package cloud provides an HTTP client for the hosted plan backend
// (a PostgREST-style data API plus a GoTrue-style auth endpoint) with
// automatic retry, backoff, and error classification.
package cloud

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status classification.
// Use errors.Is(err, cloud.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("cloud: bad request")
	ErrUnauthorized = errors.New("cloud: unauthorized")
	ErrForbidden    = errors.New("cloud: forbidden")
	ErrNotFound     = errors.New("cloud: not found")
	ErrDuplicate    = errors.New("cloud: duplicate key")
	ErrThrottled    = errors.New("cloud: throttled")
	ErrServerError  = errors.New("cloud: server error")
)

// APIError wraps a sentinel error with the HTTP status code and the API
// error message body for debugging.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloud: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error. Returns
// nil for 2xx success codes. 409 (unique-constraint violation on insert)
// maps to ErrDuplicate — the orchestrator's upsert relies on this to
// close the check-then-act race between two devices uploading the same
// new plan.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound, http.StatusNotAcceptable:
		// PostgREST answers 406 for single-object requests matching no rows.
		return ErrNotFound
	case http.StatusConflict:
		return ErrDuplicate
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
