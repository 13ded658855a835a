// Package errors defines the error taxonomy of the stats service.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for stats operations.
type ErrorCode string

const (
	// ErrCodeInvalidFilter indicates malformed query input. The request is
	// rejected before any cache or data-source interaction.
	ErrCodeInvalidFilter ErrorCode = "INVALID_FILTER"
	// ErrCodeSourceUnavailable indicates the record source query failed or
	// timed out. Nothing is cached for the affected key.
	ErrCodeSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
)

// Error is a structured error carrying a taxonomy code.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// InvalidFilter creates an invalid-filter error.
func InvalidFilter(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidFilter, Message: fmt.Sprintf(format, args...)}
}

// SourceUnavailable creates a source-unavailable error wrapping the cause.
func SourceUnavailable(cause error) *Error {
	return &Error{Code: ErrCodeSourceUnavailable, Message: "data source unavailable", Cause: cause}
}

// CodeOf returns the taxonomy code of err, or "" for untyped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInvalidFilter reports whether err is an invalid-filter error.
func IsInvalidFilter(err error) bool {
	return CodeOf(err) == ErrCodeInvalidFilter
}

// IsSourceUnavailable reports whether err is a source-unavailable error.
func IsSourceUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeSourceUnavailable
}
