package store

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a persistence failure.
type ErrorKind string

const (
	ConnectionFailed  ErrorKind = "connection_failed"
	SchemaSetupFailed ErrorKind = "schema_setup_failed"
	WriteFailed       ErrorKind = "write_failed"
	ReadFailed        ErrorKind = "read_failed"
	DropFailed        ErrorKind = "drop_failed"
)

// Sentinels for errors.Is.
var (
	ErrConnectionFailed  = &Error{Kind: ConnectionFailed}
	ErrSchemaSetupFailed = &Error{Kind: SchemaSetupFailed}
	ErrWriteFailed       = &Error{Kind: WriteFailed}
	ErrReadFailed        = &Error{Kind: ReadFailed}
	ErrDropFailed        = &Error{Kind: DropFailed}
)

// ErrNotFound is returned by Get when no session has the requested start time.
var ErrNotFound = errors.New("store: record not found")

// Error wraps a driver error with the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("store: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("store: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}
