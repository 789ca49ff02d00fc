package release

import (
	"errors"
	"fmt"
)

// ErrMalformedRelease is returned when the metadata endpoint responds with a
// payload missing required fields, as opposed to failing outright.
var ErrMalformedRelease = errors.New("release metadata is malformed")

// NetworkError wraps a transport-level failure reaching the release host.
// It is plausibly transient, so callers may choose to retry; no component
// in this module retries on its own.
type NetworkError struct {
	// Err is the underlying transport error.
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPStatusError reports a non-success HTTP response. Unlike NetworkError
// it is usually not worth retrying.
type HTTPStatusError struct {
	// Code is the HTTP status code of the response.
	Code int
	// URL is the request target, for operator-facing messages.
	URL string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("unexpected http status %d", e.Code)
	}

	return fmt.Sprintf("unexpected http status %d from %s", e.Code, e.URL)
}
