// Package errs defines the error taxonomy shared by every bo4go package.
//
// Callers classify failures with errors.Is against the sentinels below and
// read the structured context (class, relationship, operation) through
// errors.As on *Error. Messages are part of the public contract.
package errs

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Sentinel errors for classification with errors.Is
var (
	// ErrDeveloper marks programming or usage mistakes (adding nil, breaking a
	// composition rule, deleting an object that was never saved).
	ErrDeveloper = errors.New("developer error")

	// ErrConfiguration marks broken class or relationship setup.
	ErrConfiguration = errors.New("configuration error")

	// ErrIndexOutOfRange marks positional arguments outside the valid range.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrParse marks malformed textual input such as an order criteria string.
	ErrParse = errors.New("parse error")

	// ErrPersistence marks failures reported by a persistence collaborator.
	ErrPersistence = errors.New("persistence error")

	// ErrNotFound is returned when a requested object does not exist.
	ErrNotFound = errors.New("not found")
)

// Error carries the context of a failed collection or relationship operation
type Error struct {
	// Kind is one of the sentinels above
	Kind error

	// Class is the business object class involved, if any
	Class string

	// Relationship is the relationship name involved, if any
	Relationship string

	// Op is the attempted operation (add, remove, mark_for_delete, ...)
	Op string

	// Message is the human readable description
	Message string

	// Err is an optional underlying cause
	Err error

	stack []uintptr
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the kind and the cause to errors.Is and errors.As
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Stack formats the call stack captured when the error was created
func (e *Error) Stack() []string {
	if len(e.stack) == 0 {
		return nil
	}

	frames := runtime.CallersFrames(e.stack)
	var result []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			result = append(result, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more || len(result) > 10 {
			break
		}
	}
	return result
}

func captureStack() []uintptr {
	var pcs [32]uintptr
	// skip runtime.Callers, captureStack, newError and the exported constructor
	n := runtime.Callers(4, pcs[:])
	return pcs[:n]
}

func newError(kind error, class, relationship, op, message string) *Error {
	return &Error{
		Kind:         kind,
		Class:        class,
		Relationship: relationship,
		Op:           op,
		Message:      message,
		stack:        captureStack(),
	}
}

// Developer creates a developer error
func Developer(class, relationship, op, format string, args ...any) error {
	return newError(ErrDeveloper, class, relationship, op, fmt.Sprintf(format, args...))
}

// Configuration creates a configuration error
func Configuration(class, op, format string, args ...any) error {
	return newError(ErrConfiguration, class, "", op, fmt.Sprintf(format, args...))
}

// IndexRange creates an index-range error
func IndexRange(op, message string) error {
	return newError(ErrIndexOutOfRange, "", "", op, message)
}

// Parse creates a parse error
func Parse(op, format string, args ...any) error {
	return newError(ErrParse, "", "", op, fmt.Sprintf(format, args...))
}

// Persistence wraps a collaborator failure
func Persistence(class, op string, cause error) error {
	e := newError(ErrPersistence, class, "", op, fmt.Sprintf("failed to %s %s", op, class))
	e.Err = cause
	return e
}

// IsDeveloper reports whether err is a developer error
func IsDeveloper(err error) bool {
	return errors.Is(err, ErrDeveloper)
}

// IsConfiguration reports whether err is a configuration error
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsIndexOutOfRange reports whether err is an index-range error
func IsIndexOutOfRange(err error) bool {
	return errors.Is(err, ErrIndexOutOfRange)
}

// IsParse reports whether err is a parse error
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}
