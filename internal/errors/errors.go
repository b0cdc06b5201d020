package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable label carried in every error body.
type ErrorCode string

const (
	ErrorCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrorCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrorCodeRateLimited  ErrorCode = "RATE_LIMITED"

	ErrorCodeInternalServerError ErrorCode = "INTERNAL_SERVER_ERROR"
)

// APIError represents a structured error response.
type APIError struct {
	Code    ErrorCode `json:"error"`
	Message string    `json:"message"`
	// RetryAfter is set (in whole seconds) only for rate-limit rejections.
	RetryAfter int   `json:"retryAfter,omitempty"`
	Err        error `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to its HTTP status.
func (e *APIError) StatusCode() int {
	switch e.Code {
	case ErrorCodeBadRequest:
		return 400
	case ErrorCodeUnauthorized:
		return 401
	case ErrorCodeForbidden:
		return 403
	case ErrorCodeNotFound:
		return 404
	case ErrorCodeRateLimited:
		return 429
	default:
		return 500
	}
}

// NewAPIError creates a new APIError.
func NewAPIError(code ErrorCode, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// WrapAPIError wraps an existing error with an APIError.
func WrapAPIError(code ErrorCode, message string, err error) *APIError {
	return &APIError{Code: code, Message: message, Err: err}
}

// AsAPIError extracts an APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// Common error constructors

func BadRequest(message string) *APIError {
	return NewAPIError(ErrorCodeBadRequest, message)
}

func BadRequestf(format string, args ...interface{}) *APIError {
	return NewAPIError(ErrorCodeBadRequest, fmt.Sprintf(format, args...))
}

func Unauthorized(message string) *APIError {
	return NewAPIError(ErrorCodeUnauthorized, message)
}

func Forbidden(message string) *APIError {
	return NewAPIError(ErrorCodeForbidden, message)
}

func NotFound(message string) *APIError {
	return NewAPIError(ErrorCodeNotFound, message)
}

func NotFoundf(format string, args ...interface{}) *APIError {
	return NewAPIError(ErrorCodeNotFound, fmt.Sprintf(format, args...))
}

// RateLimited builds a 429 error carrying the number of seconds the client
// should wait before retrying.
func RateLimited(message string, retryAfter int) *APIError {
	e := NewAPIError(ErrorCodeRateLimited, message)
	e.RetryAfter = retryAfter
	return e
}

func InternalServerError(message string) *APIError {
	return NewAPIError(ErrorCodeInternalServerError, message)
}
