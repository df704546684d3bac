package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	// ErrCodeValidation: an inbound signaling event is missing a required
	// field for its kind. The event is dropped and an error event is
	// returned to the sender; the connection stays open.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeState: an event is well-formed but inapplicable to the current
	// orchestrator or room state (for example an answer with no pending
	// offer). Logged and ignored, never fatal.
	ErrCodeState ErrorCode = "STATE_ERROR"

	// ErrCodeTransport: socket-level disconnect or timeout. Triggers cleanup
	// and, on the client, surfaces a reconnect-eligible state.
	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"

	// ErrCodeNegotiation: a peer connection reached the failed state.
	ErrCodeNegotiation ErrorCode = "NEGOTIATION_FAILURE"

	ErrCodeNotFound  ErrorCode = "NOT_FOUND"
	ErrCodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal  ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Common error constructors

func NewValidationError(message string) *AppError {
	return NewAppError(ErrCodeValidation, message, http.StatusBadRequest)
}

func NewStateError(message string) *AppError {
	return NewAppError(ErrCodeState, message, http.StatusConflict)
}

func NewTransportError(message string, cause error) *AppError {
	return WrapError(cause, ErrCodeTransport, message, http.StatusBadGateway)
}

func NewNegotiationFailure(message string) *AppError {
	return NewAppError(ErrCodeNegotiation, message, http.StatusBadGateway)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// IsValidation reports whether err carries the validation code.
func IsValidation(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == ErrCodeValidation
}

// IsState reports whether err carries the state code.
func IsState(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == ErrCodeState
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	type unwrapper interface {
		Unwrap() error
	}

	if u, ok := err.(unwrapper); ok {
		return GetAppError(u.Unwrap())
	}

	return nil
}
