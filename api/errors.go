package api

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is returned when the request never produced an HTTP response.
	ErrTransport = errors.New("backend unreachable")

	// ErrMalformedResponse is returned for non-JSON or undecodable response bodies.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == 401
}

// ServerMessage extracts the backend's message from err, if any.
func ServerMessage(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Message
	}
	return ""
}
