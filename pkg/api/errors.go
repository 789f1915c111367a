package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned for 401/403 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrMaintenance is returned when the API reports maintenance mode.
	ErrMaintenance = errors.New("api in maintenance mode")
)

// Error is an HTTP-level failure reported by the API. It unwraps to one of
// the package sentinels when the status code maps to one.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	// Body is the raw response body, kept for callers that understand
	// endpoint-specific error envelopes.
	Body []byte
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("API error code %d: %s: %s", e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("API error code %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("API error code %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
}

func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusServiceUnavailable:
		if containsFold(e.Message, "maintenance mode") {
			return ErrMaintenance
		}
	}
	return nil
}

// IsHTTPError reports whether err carries an HTTP status from the API, as
// opposed to a connection, timeout or encoding failure.
func IsHTTPError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr)
}
