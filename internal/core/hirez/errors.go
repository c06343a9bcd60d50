package hirez

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials is returned when the dev id or auth key is empty.
	ErrMissingCredentials = errors.New("hirez: dev id and auth key are required")

	// ErrAsyncNotStarted is returned by asynchronous calls made before Start.
	ErrAsyncNotStarted = fmt.Errorf("hirez: async calls require Start: %w", errors.ErrUnsupported)

	// ErrAlreadyStarted is returned when Start is called on a running dispatcher.
	ErrAlreadyStarted = errors.New("hirez: async dispatcher already started")
)

// StatusError reports a non-2xx response from the API.
type StatusError struct {
	Method     string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("hirez: %s returned %s", e.Method, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// ShapeError reports a response whose JSON kind differs from the one the
// caller asked for.
type ShapeError struct {
	Method   string
	Expected string
	Actual   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("hirez: %s: expected JSON %s, received %s", e.Method, e.Expected, e.Actual)
}

// SessionError reports a createsession call the API did not approve.
type SessionError struct {
	RetMsg string
}

func (e *SessionError) Error() string {
	if e.RetMsg == "" {
		return "hirez: createsession returned no session id"
	}
	return "hirez: createsession rejected: " + e.RetMsg
}
