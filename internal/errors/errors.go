package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a casekeep error code.
type ErrorCode string

const (
	ErrInvalidArgument    ErrorCode = "INVALID_ARGUMENT"    // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrTextTooLarge       ErrorCode = "TEXT_TOO_LARGE"      // 413
	ErrInternal           ErrorCode = "INTERNAL"            // 500
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE" // 503
)

// StoreError represents a structured error with code, status, and details.
type StoreError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidArgument creates a 400 error for malformed input.
func NewInvalidArgument(msg string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidArgument,
		Status:  400,
		Message: msg,
	}
}

// NewSessionNotFound creates a 404 error for a session with no case state.
func NewSessionNotFound(sessionID string) *StoreError {
	return &StoreError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("no case state for session: %s", sessionID),
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewTextTooLarge creates a 413 error when a text field exceeds the configured limit.
func NewTextTooLarge(field string, max, actual int) *StoreError {
	return &StoreError{
		Code:    ErrTextTooLarge,
		Status:  413,
		Message: fmt.Sprintf("%s exceeds maximum size: %d chars (max %d)", field, actual, max),
		Details: map[string]any{"field": field, "max_chars": max, "actual_chars": actual},
	}
}

// NewStorageUnavailable creates a 503 error for backing-store failures.
// The underlying error is kept in Details for logging and never shown to MCP clients.
func NewStorageUnavailable(err error) *StoreError {
	details := map[string]any{}
	if err != nil {
		details["storage_error"] = err.Error()
	}
	return &StoreError{
		Code:    ErrStorageUnavailable,
		Status:  503,
		Message: "storage unavailable",
		Details: details,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *StoreError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &StoreError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (or anything it wraps) is a StoreError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *StoreError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}
