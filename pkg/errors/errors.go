package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the fault class that ended an operation
type ErrorType string

const (
	// Transient element faults raised by the browser session
	ErrorTypeStale            ErrorType = "stale"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeTimeout          ErrorType = "timeout"
	ErrorTypeClickIntercepted ErrorType = "click_intercepted"
	ErrorTypeDriver           ErrorType = "driver"

	// Fatal for the current harvest
	ErrorTypeSessionInvalid ErrorType = "session_invalid"
	ErrorTypeExhausted      ErrorType = "exhausted"

	ErrorTypeParsing   ErrorType = "parsing"
	ErrorTypeStorage   ErrorType = "storage"
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeCancelled ErrorType = "cancelled"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error is a typed harvest error
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Op != "" {
		msg += " in " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same type, so sentinel-style checks such as
// errors.Is(err, &Error{Type: ErrorTypeStale}) work through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Op == "" && t.Message == "" && t.Err == nil
}

// New creates a typed error without a cause
func New(t ErrorType, op, message string) *Error {
	return &Error{Type: t, Op: op, Message: message}
}

// Wrap attaches a fault class to an underlying error
func Wrap(t ErrorType, op string, err error) *Error {
	return &Error{Type: t, Op: op, Err: err}
}

// TypeOf returns the fault class of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given fault class
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeStale, ErrorTypeNotFound, ErrorTypeTimeout,
		ErrorTypeClickIntercepted, ErrorTypeDriver:
		return true
	default:
		return false
	}
}
