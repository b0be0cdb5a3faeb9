package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/sleepimport/internal/archive"
	"github.com/JonMunkholm/sleepimport/internal/sleep"
	"github.com/JonMunkholm/sleepimport/internal/store"
)

// Stage is a step of the import state machine. Stages only move forward:
// extracting, parsing, persisting, done. Any failure ends in failed.
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageParsing    Stage = "parsing"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Kinds that do not come from a component error.
const (
	KindCancelled = "cancelled"
	KindTimeout   = "timeout"
	KindInternal  = "internal"
)

// ImportError is returned by RunImport. Stage is where the run stopped and
// Kind mirrors the originating error's kind (for example "payload_not_found",
// "invalid_numeric" or "write_failed").
type ImportError struct {
	ImportID string
	Stage    Stage
	Kind     string
	Err      error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import failed while %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// kindOf extracts the component error kind from err.
func kindOf(err error) string {
	var (
		ae *archive.Error
		pe *sleep.ParseError
		se *store.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &ae):
		return string(ae.Kind)
	case errors.As(err, &pe):
		return string(pe.Kind)
	case errors.As(err, &se):
		return string(se.Kind)
	default:
		return KindInternal
	}
}
