// Package errors provides structured error types for nativepkg.
//
// Errors carry a machine-readable [Code] so callers can branch on the failure
// kind without string matching, while still wrapping the underlying cause:
//
//	err := errors.Wrap(errors.ErrCodeRegistry, cause, "fetch %s@%s", id, v)
//	if errors.Is(err, errors.ErrCodeNotFound) {
//	    // handle a missing package
//	}
//
// # Error Codes
//
//   - NOT_FOUND: the registry has no matching id or version
//   - REGISTRY_ERROR: non-success response, malformed payload, or transport failure
//   - DEPENDENCY_CONFLICT: two ranges for one id cannot be satisfied together
//   - MISSING_ARTIFACT_LINK: a binary dependency publishes no download link
//   - ARTIFACT_WRITE_ERROR: a filesystem failure while placing or rewriting files
//   - INVALID_*: input validation failures
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidPackage  Code = "INVALID_PACKAGE"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	// Registry errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeRegistry Code = "REGISTRY_ERROR"

	// Resolution errors
	ErrCodeDependencyConflict  Code = "DEPENDENCY_CONFLICT"
	ErrCodeMissingArtifactLink Code = "MISSING_ARTIFACT_LINK"

	// Filesystem errors
	ErrCodeArtifactWrite Code = "ARTIFACT_WRITE_ERROR"

	// Authentication errors
	ErrCodeUnauthorized Code = "UNAUTHORIZED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// coded is implemented by typed errors that carry their own code.
type coded interface {
	error
	Code() Code
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error or a typed error with a
// matching code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message (and cause) without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// Requirement names who asked for a package and with which range.
type Requirement struct {
	Requester string // id of the requiring package
	Range     string // requested version range
}

// DependencyConflictError is returned when two requirements for the same
// package cannot be satisfied by any single published version.
type DependencyConflictError struct {
	ID       string
	Existing Requirement
	Incoming Requirement
}

// Error implements the error interface.
func (e *DependencyConflictError) Error() string {
	return fmt.Sprintf("%s: %s requires %s@%s but %s requires %s@%s and no published version satisfies both",
		ErrCodeDependencyConflict,
		e.Existing.Requester, e.ID, e.Existing.Range,
		e.Incoming.Requester, e.ID, e.Incoming.Range)
}

// Code returns the error code for this error type.
func (e *DependencyConflictError) Code() Code {
	return ErrCodeDependencyConflict
}
