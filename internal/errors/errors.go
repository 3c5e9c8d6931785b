// Package errors provides the unified error type shared by the graph client,
// the cache layer and the graph service.
//
// Every failure that crosses a package boundary is a *UnifiedError carrying a
// type (for classification), a code (for programmatic handling), a
// human-readable message and, where relevant, the HTTP status it maps to.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ============================================================================
// ERROR TYPES
// ============================================================================

// ErrorType defines the category of error for proper handling and response.
type ErrorType string

const (
	// Input errors
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"

	// Remote call errors
	ErrorTypeRequestFailed ErrorType = "REQUEST_FAILED"
	ErrorTypeNetwork       ErrorType = "NETWORK"

	// Infrastructure errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
)

// UnifiedError is the single error type used across the module.
type UnifiedError struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Resource  string    `json:"resource,omitempty"`

	// Status is the HTTP status associated with the error. For RequestFailed
	// it is the status the server answered with.
	Status    int   `json:"status,omitempty"`
	Retryable bool  `json:"retryable"`
	Cause     error `json:"-"`

	File string `json:"-"`
	Line int    `json:"-"`
}

// Error implements the error interface.
func (e *UnifiedError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *UnifiedError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code a handler should answer with.
func (e *UnifiedError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeUnavailable, ErrorTypeNetwork:
		return http.StatusServiceUnavailable
	case ErrorTypeRequestFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// ERROR BUILDER
// ============================================================================

// ErrorBuilder provides a fluent interface for constructing UnifiedError values.
type ErrorBuilder struct {
	error *UnifiedError
}

// NewError creates a new error builder with the specified type and message.
func NewError(errType ErrorType, code, message string) *ErrorBuilder {
	_, file, line, _ := runtime.Caller(1)

	return &ErrorBuilder{
		error: &UnifiedError{
			Type:    errType,
			Code:    code,
			Message: message,
			File:    file,
			Line:    line,
		},
	}
}

// WithDetails adds additional details to the error.
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.error.Details = details
	return b
}

// WithOperation specifies the operation that failed.
func (b *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	b.error.Operation = operation
	return b
}

// WithResource specifies the resource being operated on.
func (b *ErrorBuilder) WithResource(resource string) *ErrorBuilder {
	b.error.Resource = resource
	return b
}

// WithStatus sets the HTTP status.
func (b *ErrorBuilder) WithStatus(status int) *ErrorBuilder {
	b.error.Status = status
	return b
}

// WithRetryable marks the error as retryable.
func (b *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	b.error.Retryable = retryable
	return b
}

// WithCause adds the underlying cause error.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.error.Cause = cause
	return b
}

// Build returns the constructed UnifiedError.
func (b *ErrorBuilder) Build() *UnifiedError {
	return b.error
}

// ============================================================================
// CONVENIENCE CONSTRUCTORS
// ============================================================================

// Validation creates a validation error.
func Validation(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeValidation, code, message)
}

// NotFound creates a not found error.
func NotFound(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeNotFound, code, message)
}

// Conflict creates a conflict error.
func Conflict(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeConflict, code, message).WithRetryable(true)
}

// Internal creates an internal error.
func Internal(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeInternal, code, message)
}

// Unavailable creates an error for a dependency that refuses work, such as an
// open circuit breaker.
func Unavailable(code, message string) *ErrorBuilder {
	return NewError(ErrorTypeUnavailable, code, message).WithRetryable(true)
}

// RequestFailed creates the error returned by the graph client when the server
// answers with a non-2xx status.
func RequestFailed(status int, message string) *ErrorBuilder {
	return NewError(ErrorTypeRequestFailed, "REQUEST_FAILED", message).
		WithStatus(status).
		WithRetryable(status >= http.StatusInternalServerError)
}

// Network creates the error returned when the transport itself failed.
func Network(message string, cause error) *ErrorBuilder {
	return NewError(ErrorTypeNetwork, "NETWORK_ERROR", message).
		WithCause(cause).
		WithRetryable(true)
}

// ============================================================================
// CLASSIFICATION
// ============================================================================

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Type == errType
	}
	return false
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsRequestFailed checks if an error came from a non-2xx response.
func IsRequestFailed(err error) bool { return IsType(err, ErrorTypeRequestFailed) }

// IsNetwork checks if an error came from a transport failure.
func IsNetwork(err error) bool { return IsType(err, ErrorTypeNetwork) }

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Retryable
	}
	return false
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// UserMessage extracts the message meant for a person: the Message of the
// outermost UnifiedError, or fallback for anything else.
func UserMessage(err error, fallback string) string {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) && strings.TrimSpace(unifiedErr.Message) != "" {
		return unifiedErr.Message
	}
	return fallback
}

// Wrap wraps an existing error with additional context while preserving the
// original classification.
func Wrap(err error, operation, message string) *UnifiedError {
	if err == nil {
		return nil
	}

	var existingErr *UnifiedError
	if errors.As(err, &existingErr) {
		return &UnifiedError{
			Type:      existingErr.Type,
			Code:      existingErr.Code,
			Message:   message,
			Details:   existingErr.Message,
			Operation: operation,
			Resource:  existingErr.Resource,
			Status:    existingErr.Status,
			Retryable: existingErr.Retryable,
			Cause:     err,
			File:      existingErr.File,
			Line:      existingErr.Line,
		}
	}

	_, file, line, _ := runtime.Caller(1)
	return &UnifiedError{
		Type:      ErrorTypeInternal,
		Code:      "WRAP_ERROR",
		Message:   message,
		Details:   err.Error(),
		Operation: operation,
		Cause:     err,
		File:      file,
		Line:      line,
	}
}
