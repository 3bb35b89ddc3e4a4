package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeInvalidCredentials indicates the email/password pair was rejected.
	ErrCodeInvalidCredentials ErrorCode = "invalid_credentials"
	// ErrCodeAlreadyRegistered indicates a sign-up for an existing account.
	ErrCodeAlreadyRegistered ErrorCode = "already_registered"
	// ErrCodeUnavailable indicates the identity provider or a backing store could not be reached.
	ErrCodeUnavailable ErrorCode = "unavailable"
	// ErrCodeNoSession indicates an operation that needs a session was called without one.
	ErrCodeNoSession ErrorCode = "no_session"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidCredentials creates the error returned for a rejected sign-in.
func InvalidCredentials(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidCredentials,
		Message: "Invalid login credentials",
		Cause:   cause,
	}
}

// AlreadyRegistered creates the error returned when signing up an existing account.
func AlreadyRegistered(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeAlreadyRegistered,
		Message: "User already registered",
		Cause:   cause,
	}
}

// NoSession creates the error returned when an operation needs a session and none exists.
func NoSession() *AppError {
	return &AppError{Code: ErrCodeNoSession, Message: "no active session"}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsInvalidCredentials checks if an error is an InvalidCredentials error.
func IsInvalidCredentials(err error) bool {
	return isCode(err, ErrCodeInvalidCredentials)
}

// IsAlreadyRegistered checks if an error is an AlreadyRegistered error.
func IsAlreadyRegistered(err error) bool {
	return isCode(err, ErrCodeAlreadyRegistered)
}

// IsUnavailable checks if an error is an Unavailable error.
func IsUnavailable(err error) bool {
	return isCode(err, ErrCodeUnavailable)
}

// IsNoSession checks if an error is a NoSession error.
func IsNoSession(err error) bool {
	return isCode(err, ErrCodeNoSession)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// UserMessage returns text suitable for showing to the person signing in.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "Something went wrong. Please try again."
	}
	switch appErr.Code {
	case ErrCodeInvalidCredentials:
		return "Incorrect email or password. Please try again."
	case ErrCodeAlreadyRegistered:
		return "An account with this email already exists. Please sign in instead."
	case ErrCodeUnavailable, ErrCodeTimeout:
		return "We could not reach the server. Check your connection and try again."
	default:
		return appErr.Message
	}
}
