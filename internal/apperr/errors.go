// Package apperr defines the error taxonomy shared by the record store,
// the service layer and the HTTP API.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error. The numeric value is the wire code reported
// to API clients.
type Kind int

const (
	// Unknown is reported for errors that carry no Kind.
	Unknown Kind = 0

	// Duplicate indicates the record or identifier already exists.
	Duplicate Kind = 101

	// NotFound indicates the identifier is not present.
	NotFound Kind = 102

	// Cursor indicates a pagination token could not be decoded.
	Cursor Kind = 103

	// System indicates an unexpected internal failure.
	System Kind = 500

	// Concurrency indicates a lock could not be obtained. Callers may retry.
	Concurrency Kind = 600

	// Argument indicates invalid caller input.
	Argument Kind = 4001
)

// String returns the symbolic name of the kind.
func (k Kind) String() string {
	switch k {
	case Duplicate:
		return "DUPLICATE"
	case NotFound:
		return "NOT_FOUND"
	case Cursor:
		return "CURSOR"
	case System:
		return "SYSTEM"
	case Concurrency:
		return "CONCURRENCY"
	case Argument:
		return "ARGUMENT"
	default:
		return "UNKNOWN"
	}
}

// Code returns the numeric wire code.
func (k Kind) Code() int { return int(k) }

// Error is the single error type surfaced by this module.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// ID is the affected record identifier, if any.
	ID string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is. Any *Error of the same Kind matches.
var (
	ErrDuplicate   = &Error{Kind: Duplicate}
	ErrNotFound    = &Error{Kind: NotFound}
	ErrCursor      = &Error{Kind: Cursor}
	ErrSystem      = &Error{Kind: System}
	ErrConcurrency = &Error{Kind: Concurrency}
	ErrArgument    = &Error{Kind: Argument}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessage(e.Kind)
	}
	if e.ID != "" {
		msg = fmt.Sprintf("%s (id=%s)", msg, e.ID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// ForID creates an error of the given kind about one record.
func ForID(kind Kind, id string) *Error {
	return &Error{Kind: kind, ID: id}
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsRetryable reports whether retrying the operation may succeed.
func IsRetryable(err error) bool {
	return KindOf(err) == Concurrency
}

func defaultMessage(k Kind) string {
	switch k {
	case Duplicate:
		return "record already exists"
	case NotFound:
		return "record not found"
	case Cursor:
		return "invalid cursor"
	case Concurrency:
		return "record is busy, retry later"
	case Argument:
		return "invalid argument"
	default:
		return "internal error"
	}
}
