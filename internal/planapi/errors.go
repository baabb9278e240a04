package planapi

import (
	"errors"
	"fmt"
	"strings"
)

const (
	unreachableDetail = "Service Unreachable"
)

var (
	// ErrEmptyGoal is returned when the goal text is blank.
	ErrEmptyGoal = errors.New("goal is required")
	// ErrTimeout is returned when the backend does not answer within the configured bound.
	ErrTimeout = errors.New("the planning engine did not respond in time")
	// ErrMalformedResponse is returned when a success response cannot be turned into a plan.
	ErrMalformedResponse = errors.New("invalid response format from engine")
)

// ServerError is a non-2xx answer from the backend.
type ServerError struct {
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	return e.Detail
}

// NetworkError wraps a transport failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("could not connect to planning engine: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// Message returns the text shown to a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Detail
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "Could not connect to the planning engine."
	}
	return msg
}
