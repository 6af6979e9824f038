// Package errors provides the structured error type used by the capture engine.
// Decode failures never escape the capture path; usage errors are returned to
// callers before any waiting starts.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies errors by the part of the engine that raised them.
type Category string

const (
	CategoryDecode   Category = "DECODE"
	CategoryUsage    Category = "USAGE"
	CategorySession  Category = "SESSION"
	CategoryInternal Category = "INTERNAL"
)

// Error codes.
const (
	// Decode codes
	CodeDecompressFailed = "DECOMPRESS_FAILED"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeBodyTooLarge     = "BODY_TOO_LARGE"

	// Usage codes
	CodeInvalidQuery   = "INVALID_QUERY"
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeInvalidRequest = "INVALID_REQUEST"

	// Session codes
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeSessionClosed   = "SESSION_CLOSED"
)

// CaptureError is the error type returned across package boundaries.
type CaptureError struct {
	Category Category
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

func (e *CaptureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// Is reports whether target has the same category and code.
func (e *CaptureError) Is(target error) bool {
	var t *CaptureError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// WithDetail attaches a key/value pair and returns the same error.
func (e *CaptureError) WithDetail(key string, value interface{}) *CaptureError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDecode creates a decode error wrapping cause.
func NewDecode(code, message string, cause error) *CaptureError {
	return &CaptureError{Category: CategoryDecode, Code: code, Message: message, Cause: cause}
}

// NewUsage creates a caller-contract error.
func NewUsage(code, message string) *CaptureError {
	return &CaptureError{Category: CategoryUsage, Code: code, Message: message}
}

// NewSession creates a session lookup or lifecycle error.
func NewSession(code, message string) *CaptureError {
	return &CaptureError{Category: CategorySession, Code: code, Message: message}
}

// IsCategory reports whether err is a CaptureError of the given category.
func IsCategory(err error, category Category) bool {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Category == category
	}
	return false
}

// IsUsage reports whether err is a caller-contract violation.
func IsUsage(err error) bool {
	return IsCategory(err, CategoryUsage)
}

// IsSessionNotFound reports whether err means the session does not exist.
func IsSessionNotFound(err error) bool {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Category == CategorySession && ce.Code == CodeSessionNotFound
	}
	return false
}
