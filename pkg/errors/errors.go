package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the HTTP status an AppError maps to.
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode satisfies the interface the error middleware looks for.
func (e *AppError) StatusCode() int {
	return int(e.Code)
}

// Common error codes
const (
	ErrBadRequest       ErrorCode = http.StatusBadRequest
	ErrUnauthorized     ErrorCode = http.StatusUnauthorized
	ErrForbidden        ErrorCode = http.StatusForbidden
	ErrNotFound         ErrorCode = http.StatusNotFound
	ErrTooLarge         ErrorCode = http.StatusRequestEntityTooLarge
	ErrUnsupportedMedia ErrorCode = http.StatusUnsupportedMediaType
	ErrInternal         ErrorCode = http.StatusInternalServerError
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func TooLarge(message string, err error) *AppError {
	return &AppError{
		Code:    ErrTooLarge,
		Message: message,
		Err:     err,
	}
}

func UnsupportedMedia(message string, err error) *AppError {
	return &AppError{
		Code:    ErrUnsupportedMedia,
		Message: message,
		Err:     err,
	}
}

// As reports whether err wraps an *AppError and returns it.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
