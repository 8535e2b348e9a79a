// Package errors provides structured error types for boxrender.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Scene and request validation failures
//   - NOT_FOUND_*: Missing boxes and files
//   - *_ERROR: Storage backends (cache, history)
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidScene, "unknown box kind: %s", kind)
//	if errors.Is(err, errors.ErrCodeInvalidScene) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeCache, origErr, "failed to read %s", key)
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
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidScene  Code = "INVALID_SCENE"
	ErrCodeInvalidBox    Code = "INVALID_BOX"
	ErrCodeInvalidFrame  Code = "INVALID_FRAME"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeBoxNotFound  Code = "BOX_NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Storage errors
	ErrCodeCache Code = "CACHE_ERROR"
	ErrCodeStore Code = "STORE_ERROR"

	// Execution errors
	ErrCodeTimeout  Code = "TIMEOUT"
	ErrCodeCanceled Code = "CANCELED"
	ErrCodeRender   Code = "RENDER_ERROR"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause. Box names
// the scene box the error is about, when there is one.
type Error struct {
	Code    Code
	Message string
	Box     string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.detail()
}

// detail is the message with box and cause but without the code. Coded
// causes contribute their detail only, so codes are not repeated.
func (e *Error) detail() string {
	msg := e.Message
	if e.Box != "" {
		msg = fmt.Sprintf("box %q: %s", e.Box, msg)
	}
	if e.Cause != nil {
		if inner, ok := e.Cause.(*Error); ok {
			msg += ": " + inner.detail()
		} else {
			msg += ": " + e.Cause.Error()
		}
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ForBox attaches the name of the box the error is about.
func (e *Error) ForBox(name string) *Error {
	e.Box = name
	return e
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

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// BoxOf returns the box named by the first *Error in err's chain that has
// one.
func BoxOf(err error) string {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Box != "" {
			return e.Box
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// GetCode extracts the error code from an error, if available.
// Besides *Error it recognizes typed errors with a Code method, such as
// *FrameRangeError. Returns empty string otherwise.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c interface{ Code() Code }
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message with box and cause but without the
// code prefix. For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.detail()
	}
	return err.Error()
}

// FrameRangeError reports a frame outside the scene's frame range.
type FrameRangeError struct {
	Frame      int
	Start, End int
}

// Error implements the error interface.
func (e *FrameRangeError) Error() string {
	return fmt.Sprintf("frame %d outside range [%d, %d]", e.Frame, e.Start, e.End)
}

// Code returns the error code for this error type.
func (e *FrameRangeError) Code() Code {
	return ErrCodeInvalidFrame
}
