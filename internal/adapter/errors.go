// Package adapter contains the provider adapters and the retry/backoff
// engine that wraps them. Adapters only fetch; they never persist or
// transform beyond shaping the provider response into a RawPayload.
package adapter

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes adapter failures.
type ErrorCode string

const (
	CodeAdapterError    ErrorCode = "ADAPTER_ERROR"
	CodeFetchError      ErrorCode = "FETCH_ERROR"
	CodeNetworkError    ErrorCode = "NETWORK_ERROR"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeRateLimitError  ErrorCode = "RATE_LIMIT_ERROR"
)

// AdapterError is the base error for provider failures.
type AdapterError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// NewFetchError wraps a generic failure to obtain data.
func NewFetchError(message string, cause error) *AdapterError {
	return &AdapterError{Code: CodeFetchError, Message: message, Cause: cause}
}

// NewNetworkError wraps a connectivity or timeout failure.
func NewNetworkError(message string, cause error) *AdapterError {
	return &AdapterError{Code: CodeNetworkError, Message: message, Cause: cause}
}

// NewValidationError reports a structural problem in a fetched payload:
// empty result, missing required columns, wrong index type. Structural
// failures are never retried.
func NewValidationError(message string) *AdapterError {
	return &AdapterError{Code: CodeValidationError, Message: message}
}

// NewRateLimitError reports that the provider's request limit was hit.
func NewRateLimitError(message string, cause error) *AdapterError {
	return &AdapterError{Code: CodeRateLimitError, Message: message, Cause: cause}
}

// StatusError carries an HTTP status from a provider response so the retry
// engine can match it against the configured retryable codes.
type StatusError struct {
	StatusCode int
	URL        string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d for %s", e.StatusCode, e.URL)
}

// IsValidationError reports whether err is an adapter-level structural
// validation failure.
func IsValidationError(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae) && ae.Code == CodeValidationError
}
