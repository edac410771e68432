// Package errors provides the gateway error taxonomy and error handling utilities.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes.
const (
	// Codes surfaced to callers.
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeRateLimited     = "RATE_LIMITED"
	CodeValidation      = "VALIDATION"
	CodeInternal        = "INTERNAL"

	// Code used during construction and wiring, never written to the wire.
	CodeUnavailable = "UNAVAILABLE"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`

	// RetryAfter is the recommended wait in seconds for RATE_LIMITED errors.
	RetryAfter int `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for this error.
//
// Authentication and authorization rejections both collapse to a generic
// client-error status at the wire; the code rides in the response body.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeUnauthenticated, CodeForbidden, CodeValidation:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// Unauthenticated creates an unauthenticated error.
func Unauthenticated(message string) *AppError {
	if message == "" {
		message = "must be authenticated"
	}
	return New(CodeUnauthenticated, message)
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return New(CodeForbidden, message)
}

// RateLimited creates a rate limited error with retry information.
func RateLimited(retryAfterSeconds int) *AppError {
	err := New(CodeRateLimited, "rate limit exceeded")
	err.RetryAfter = retryAfterSeconds
	return err
}

// Internal creates an internal error.
func Internal(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// IsCode checks whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// ErrorResponse is the standard JSON error response structure.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the payload inside an error response.
type ErrorBody struct {
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// WriteJSON writes a JSON error response to the ResponseWriter.
// This is the low-level function used by the Normalizer.
func WriteJSON(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignore encoding errors - headers already sent
	_ = json.NewEncoder(w).Encode(resp)
}
