// Package deploy sequences the provisioning of interdependent workspace
// resources: connection and workspace first, then the lakehouse, then the
// artifacts that embed their identifiers. Each step follows the same shape:
// best-effort create, fetch canonical identifier by name, optional access
// grants.
package deploy

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a deployment error for the caller's abort decision.
type ErrorClass string

const (
	// ErrorClassFatal aborts the entire run: missing identity, unresolved
	// asynchronous properties, staging filesystem failures.
	ErrorClassFatal ErrorClass = "fatal"

	// ErrorClassWarning is surfaced but does not abort the run, such as
	// an individual permission grant failing.
	ErrorClassWarning ErrorClass = "warning"
)

// Error is a classified deployment error with resource context.
type Error struct {
	Class    ErrorClass
	Message  string
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource=%s)", e.Message, e.Resource)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Class, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewFatalError creates a run-aborting error.
func NewFatalError(message string, err error) *Error {
	return &Error{Class: ErrorClassFatal, Message: message, Err: err}
}

// WithResource adds resource context to an error.
func (e *Error) WithResource(resource string) *Error {
	e.Resource = resource
	return e
}

// IsFatal reports whether err is classified as fatal.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassFatal
	}
	return false
}
