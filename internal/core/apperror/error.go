// Package apperror provides structured error handling for scriptor.
// Every failure a caller can act on is expressed as an AppError with a
// machine-readable code, so CLI exit codes and HTTP statuses stay consistent.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes grouped by failure kind.
const (
	// Usage / option errors, reported before any database I/O (400)
	CodeValidation = "VALIDATION_ERROR"

	// Database resolution errors, surfaced before a handle exists
	CodeDatabaseNotFound     = "DATABASE_NOT_FOUND"
	CodeDatabaseIncompatible = "DATABASE_INCOMPATIBLE"

	// Storage layer unreachable; never conflated with not-found (5xx)
	CodeInfrastructure = "INFRASTRUCTURE_ERROR"

	// Caller work failed; triggers rollback, never swallowed
	CodeBusiness = "BUSINESS_ERROR"

	// Commit was applied and failed; the handle was still released
	CodeCommitFailed = "COMMIT_FAILED"

	// Authorization errors for the API surface (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Generic not-found for API objects (404)
	CodeNotFound = "NOT_FOUND"

	CodeInternal = "INTERNAL_ERROR"
)

// AppError is the standard error type for the platform.
// It implements error and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (database name, flags, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400).
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewDatabaseNotFound is returned before a handle is ever acquired.
func NewDatabaseNotFound(name string) *AppError {
	return &AppError{
		Code:       CodeDatabaseNotFound,
		Message:    fmt.Sprintf("database %q does not exist", name),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"database": name},
	}
}

// NewDatabaseIncompatible reports a reachable database whose schema
// version marker does not match the running binary.
func NewDatabaseIncompatible(name, want, got string) *AppError {
	return &AppError{
		Code:       CodeDatabaseIncompatible,
		Message:    fmt.Sprintf("database %q has schema version %q, expected %q", name, got, want),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"database": name, "want": want, "got": got},
	}
}

// NewInfrastructure reports an unreachable storage layer. Distinct from
// not-found so callers can decide whether retrying makes sense.
func NewInfrastructure(err error) *AppError {
	return &AppError{
		Code:       CodeInfrastructure,
		Message:    "storage layer unreachable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewBusiness wraps an error propagated out of caller work.
func NewBusiness(err error) *AppError {
	return &AppError{
		Code:       CodeBusiness,
		Message:    "unit of work failed",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

// NewCommitFailed reports a commit that failed after caller work succeeded.
func NewCommitFailed(err error) *AppError {
	return &AppError{
		Code:       CodeCommitFailed,
		Message:    "commit failed, transaction discarded",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401).
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403).
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewNotFound creates a not found error (404).
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal error (hides details from clients).
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns the appropriate HTTP status for any error.
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsValidation reports a usage/option error, distinguishable from a
// business failure for process exit codes.
func IsValidation(err error) bool {
	return IsCode(err, CodeValidation)
}
