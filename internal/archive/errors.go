package archive

import "fmt"

// ErrorKind classifies an extraction failure.
type ErrorKind string

const (
	NotAnArchive    ErrorKind = "not_an_archive"
	PayloadNotFound ErrorKind = "payload_not_found"
)

// Sentinels for errors.Is.
var (
	ErrNotAnArchive    = &Error{Kind: NotAnArchive}
	ErrPayloadNotFound = &Error{Kind: PayloadNotFound}
)

// Error reports why no payload could be produced from the input.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("archive: %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func notAnArchive(err error) error {
	return &Error{Kind: NotAnArchive, Err: err}
}
