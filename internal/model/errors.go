package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUpstreamError  = errors.New("upstream error")
	ErrRateLimited    = errors.New("rate limited")

	// ErrTransient marks timeouts and connectivity failures. The request layer
	// retries these once before surfacing them.
	ErrTransient = errors.New("transient network error")

	// ErrMergeConflict marks a guest cart the backend refused to merge.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrPersistence marks a local store read or write failure.
	ErrPersistence = errors.New("persistence error")

	// ErrSignInRequired is returned by flows that need an authenticated session.
	ErrSignInRequired = errors.New("sign in required")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewUnauthorizedError creates a 401 error for expired or invalid credentials.
// Authorization errors are never retried; callers force a sign-out.
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    reason,
		StatusCode: 401,
		Err:        ErrUnauthorized,
	}
}

// NewUpstreamError creates a 502 error for backend failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewTransientError creates a 503 error for timeouts and connectivity failures.
func NewTransientError(service string, err error) *APIError {
	return &APIError{
		Code:       "NETWORK_ERROR",
		Message:    fmt.Sprintf("%s unreachable", service),
		StatusCode: 503,
		Err:        fmt.Errorf("%w: %v", ErrTransient, err),
	}
}

// NewMergeConflictError creates a 409 error for a guest cart merge the
// backend rejected (malformed lines, unknown products).
func NewMergeConflictError(err error) *APIError {
	return &APIError{
		Code:       "MERGE_CONFLICT",
		Message:    "guest cart could not be merged",
		StatusCode: 409,
		Err:        fmt.Errorf("%w: %v", ErrMergeConflict, err),
	}
}

// NewPersistenceError creates a 500 error for local store failures.
func NewPersistenceError(op string, err error) *APIError {
	return &APIError{
		Code:       "PERSISTENCE_ERROR",
		Message:    fmt.Sprintf("local store %s failed", op),
		StatusCode: 500,
		Err:        fmt.Errorf("%w: %v", ErrPersistence, err),
	}
}

// NewSignInRequiredError creates a 401 error for flows that need a session.
func NewSignInRequiredError() *APIError {
	return &APIError{
		Code:       "SIGN_IN_REQUIRED",
		Message:    "please sign in to continue",
		StatusCode: 401,
		Err:        ErrSignInRequired,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}

// NewRateLimitError creates a 429 error for rate limiting.
func NewRateLimitError(service string) *APIError {
	return &APIError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("%s rate limit exceeded, please retry later", service),
		StatusCode: 429,
		Err:        ErrRateLimited,
	}
}

// IsAuthorization reports whether err is an expired or invalid credential.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotFound reports whether err is a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient reports whether err is a timeout or connectivity failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsMergeConflict reports whether err is a rejected guest cart merge.
func IsMergeConflict(err error) bool {
	return errors.Is(err, ErrMergeConflict)
}
