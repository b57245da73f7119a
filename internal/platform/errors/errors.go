// Package errors defines the coded domain errors returned by the simulation.
package errors

import "fmt"

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknownExam      Code = "UNKNOWN_EXAM"
	CodeUnknownTreatment Code = "UNKNOWN_TREATMENT"
	CodeUnknownFlag      Code = "UNKNOWN_FLAG"
	CodeInvalidCase      Code = "INVALID_CASE"
	CodeDuplicateCase    Code = "DUPLICATE_CASE"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeCorruptSave      Code = "CORRUPT_SAVE"
	CodeInvalidCommand   Code = "INVALID_COMMAND"
	CodeRateLimited      Code = "RATE_LIMITED"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Metadata map[string]string // Additional context
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the code of a domain error, or "" when err is not one.
func CodeOf(err error) Code {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
