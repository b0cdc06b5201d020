package client

import (
	"errors"
	"fmt"
)

// ErrInvalidURL is returned by New for an unusable base URL.
var ErrInvalidURL = errors.New("invalid base URL")

// ErrUnauthorized means the API key was missing or rejected.
var ErrUnauthorized = errors.New("unauthorized: bad or missing API key")

// ErrForbidden means the admin key was rejected.
var ErrForbidden = errors.New("forbidden: bad or missing admin key")

// RateLimitError is the typed form of a 429 rejection.
type RateLimitError struct {
	RetryAfter int // seconds; 0 when the server gave no hint
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfter)
	}
	return "rate limited"
}

// ServerError wraps any other non-2xx response.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// NetworkError wraps a transport-level failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodingError wraps a malformed response body.
type DecodingError struct {
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decoding error: %v", e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// retriable reports whether a fetch error is worth another attempt.
func retriable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.Status >= 500
	}
	return false
}

// fallbackEligible reports whether the cached document may stand in for a
// failed fetch. Auth failures always surface; the caller should know its key
// is bad.
func fallbackEligible(err error) bool {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) {
		return false
	}
	return true
}
