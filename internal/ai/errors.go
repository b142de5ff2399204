package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a failed completion call
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

// NewAPIError creates a new API error. statusCode is 0 when the provider
// answered 200 with nothing usable.
func NewAPIError(provider string, statusCode int, message string, err error) *APIError {
	return &APIError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Provider, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying later may succeed (rate limited or provider down)
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsTemporary reports whether err is a completion failure worth retrying later
func IsTemporary(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

// ValidationError is a request rejected before any provider is called
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
