package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a SideClip error code.
type ErrorCode string

const (
	ErrEmptyInput         ErrorCode = "EMPTY_INPUT"         // 400, silent no-op for captures
	ErrInvalidPayload     ErrorCode = "INVALID_PAYLOAD"     // 400, capture dropped
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrStorageConflict    ErrorCode = "STORAGE_CONFLICT"    // 409, id collision after retry
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE" // 503
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// ClipError represents a structured error with code, status, and details.
type ClipError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// cause is the underlying backend error, if any. Never rendered to clients.
	cause error
}

// Error implements the error interface.
func (e *ClipError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *ClipError) Unwrap() error {
	return e.cause
}

// NewEmptyInput creates a 400 error for blank capture input.
func NewEmptyInput() *ClipError {
	return &ClipError{
		Code:    ErrEmptyInput,
		Status:  400,
		Message: "captured text is empty",
	}
}

// NewInvalidPayload creates a 400 error for malformed capture input.
func NewInvalidPayload(msg string) *ClipError {
	return &ClipError{
		Code:    ErrInvalidPayload,
		Status:  400,
		Message: msg,
	}
}

// NewImageTooLarge creates an INVALID_PAYLOAD error when an image exceeds the size limit.
func NewImageTooLarge(max, actual int64) *ClipError {
	return &ClipError{
		Code:    ErrInvalidPayload,
		Status:  400,
		Message: fmt.Sprintf("image exceeds maximum size: %d bytes (max %d)", actual, max),
		Details: map[string]any{"max_bytes": max, "actual_bytes": actual},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ClipError {
	return &ClipError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when an entry or image cannot be found.
func NewNotFound(identifier string) *ClipError {
	return &ClipError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("entry not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing capture file.
func NewFileNotFound(path string) *ClipError {
	return &ClipError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewStorageConflict creates a 409 error for an id collision that survived a retry.
func NewStorageConflict(id string) *ClipError {
	return &ClipError{
		Code:    ErrStorageConflict,
		Status:  409,
		Message: fmt.Sprintf("id collision persisted after retry: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewStorageUnavailable creates a 503 error for backend failures (locked, full, closed).
func NewStorageUnavailable(err error) *ClipError {
	msg := "storage unavailable"
	if err != nil {
		msg = "storage unavailable: " + err.Error()
	}
	return &ClipError{
		Code:    ErrStorageUnavailable,
		Status:  503,
		Message: msg,
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ClipError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ClipError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a ClipError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ClipError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// As extracts a *ClipError from err, wrapping anything else as INTERNAL.
func As(err error) *ClipError {
	var cErr *ClipError
	if stderrors.As(err, &cErr) {
		return cErr
	}
	return NewInternal(err)
}
