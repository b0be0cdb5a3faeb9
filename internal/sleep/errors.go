package sleep

import "fmt"

// ErrorKind classifies a parse failure.
type ErrorKind string

const (
	MissingField       ErrorKind = "missing_field"
	MalformedTimestamp ErrorKind = "malformed_timestamp"
	MalformedTimezone  ErrorKind = "malformed_timezone"
	InvalidNumeric     ErrorKind = "invalid_numeric"
	MalformedRow       ErrorKind = "malformed_row"
)

// ParseError reports why a row could not be converted into a Record.
type ParseError struct {
	Kind   ErrorKind
	Field  string
	Value  string
	Record int // 1-based position in the export, 0 when unknown
	Err    error
}

func (e *ParseError) Error() string {
	msg := string(e.Kind)
	if e.Field != "" {
		msg += fmt.Sprintf(" %q", e.Field)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" (value %q)", e.Value)
	}
	if e.Record > 0 {
		msg = fmt.Sprintf("record %d: %s", e.Record, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *ParseError of the same kind, so callers can
// write errors.Is(err, &sleep.ParseError{Kind: sleep.InvalidNumeric}).
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Field == "" || t.Field == e.Field)
}
