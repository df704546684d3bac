package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewValidationError("roomId is required")
	expected := "VALIDATION_ERROR: roomId is required"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestAppError_ErrorWithCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransportError("socket closed", cause)
	expected := "TRANSPORT_ERROR: socket closed (caused by: connection reset)"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := WrapError(cause, ErrCodeInternal, "wrapped", http.StatusInternalServerError)
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewStateError("answer with no pending offer").
		WithContext("room_id", "r1").
		WithContext("state", "idle")

	if err.Context["room_id"] != "r1" {
		t.Errorf("Expected room_id context, got %v", err.Context["room_id"])
	}
	if err.Context["state"] != "idle" {
		t.Errorf("Expected state context, got %v", err.Context["state"])
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       ErrorCode
		httpStatus int
	}{
		{"validation", NewValidationError("missing sdp"), ErrCodeValidation, http.StatusBadRequest},
		{"state", NewStateError("no peer connection"), ErrCodeState, http.StatusConflict},
		{"negotiation", NewNegotiationFailure("connection failed"), ErrCodeNegotiation, http.StatusBadGateway},
		{"not found", NewNotFoundError("room"), ErrCodeNotFound, http.StatusNotFound},
		{"rate limit", NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{"internal", NewInternalError("boom"), ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.HTTPStatus != tt.httpStatus {
				t.Errorf("Expected status %d, got %d", tt.httpStatus, tt.err.HTTPStatus)
			}
		})
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewValidationError("bad payload")
	wrapped := fmt.Errorf("handling event: %w", appErr)

	got := GetAppError(wrapped)
	if got == nil {
		t.Fatal("Expected to extract AppError from wrapped error")
	}
	if got.Code != ErrCodeValidation {
		t.Errorf("Expected VALIDATION_ERROR, got %s", got.Code)
	}
}

func TestGetAppError_NotAppError(t *testing.T) {
	if got := GetAppError(errors.New("plain")); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
	if got := GetAppError(nil); got != nil {
		t.Errorf("Expected nil for nil error, got %v", got)
	}
}

func TestIsValidationAndIsState(t *testing.T) {
	if !IsValidation(NewValidationError("x")) {
		t.Error("Expected IsValidation true")
	}
	if IsValidation(NewStateError("x")) {
		t.Error("Expected IsValidation false for state error")
	}
	if !IsState(fmt.Errorf("wrap: %w", NewStateError("x"))) {
		t.Error("Expected IsState true through wrapping")
	}
}
