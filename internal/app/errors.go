package app

import (
	"errors"
	"fmt"
	"net/http"

	"symposium/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func invalidInput(message string) *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_INPUT", message, nil)
}

func upstreamError(message string, err error) *DomainError {
	return domainError(http.StatusBadGateway, "UPSTREAM_ERROR", message, map[string]any{"reason": err.Error()})
}

// notFoundAs names the missing resource when err is a store miss and
// returns err unchanged otherwise.
func notFoundAs(err error, resource string) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainError(http.StatusNotFound, "NOT_FOUND", resource+" not found", nil)
	}
	return err
}
