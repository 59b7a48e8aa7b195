package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Request and model errors
const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrUnsupportedModel ErrorCode = "UNSUPPORTED_MODEL"
)

// Automation surface errors
const (
	ErrAuthentication    ErrorCode = "AUTHENTICATION"
	ErrSelectorNotFound  ErrorCode = "SELECTOR_NOT_FOUND"
	ErrNavigationTimeout ErrorCode = "NAVIGATION_TIMEOUT"
	ErrNoActiveSession   ErrorCode = "NO_ACTIVE_SESSION"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Stream and internal errors
const (
	// ErrStreamUnconfirmed is a non-fatal condition: the response text was
	// captured but the page never surfaced its completion marker.
	ErrStreamUnconfirmed ErrorCode = "STREAM_UNCONFIRMED"
	ErrInternalError     ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Op         string    `json:"op,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithOp records the automation operation that failed.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
