package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork wraps transport failures: DNS, refused connections, timeouts.
	ErrNetwork = errors.New("network error")

	// ErrSchemaMismatch means the server answered with something other than
	// JSON where JSON was expected, usually an HTML page from a proxy or SPA
	// fallback route.
	ErrSchemaMismatch = errors.New("unexpected non-JSON response: check that the API base URL routes to the approvals backend")

	// ErrAuthExpired means the session could not be refreshed.
	ErrAuthExpired = errors.New("authentication expired")
)

// HTTPError is a non-2xx answer from the server.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// ValidationError is a local check that failed before anything was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
