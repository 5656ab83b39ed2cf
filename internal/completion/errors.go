package completion

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned when the service answers without text.
	ErrEmptyResponse = errors.New("empty response")
	// ErrInvalidStructure is returned when a plan response is not the expected JSON.
	ErrInvalidStructure = errors.New("invalid structure")
	// ErrTimeout is returned when the call exceeds its deadline.
	ErrTimeout = errors.New("completion request timed out")
	// ErrMissingCredential is returned when no API key was supplied.
	ErrMissingCredential = errors.New("completion credential not configured")
)

// Error is a non-success HTTP answer from the completion service.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("OpenRouter API error: %d - %s", e.Status, msg)
}
