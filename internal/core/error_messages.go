package core

// error_messages.go maps technical errors to coded, user-facing messages.
//
// Users quote the code to whoever runs the importer; the code points at the
// failing stage without exposing driver errors.
//
// # Archive (ARC)
//
//	ARC001 - Not an archive: the upload is not a recognised archive
//	ARC002 - Payload not found: no sleep export CSV inside the archive
//
// # Parsing (PRS)
//
//	PRS001 - Missing field: a required column is absent
//	PRS002 - Malformed timestamp: Id or To is not in the expected format
//	PRS003 - Malformed timezone: Tz is not a known zone name
//	PRS004 - Invalid number: a numeric column holds something else
//	PRS005 - Malformed row: the CSV itself could not be read
//
// # Database (DB)
//
//	DB001 - Connection failed
//	DB002 - Schema setup failed
//	DB003 - Write failed (nothing from the upload was stored)
//	DB004 - Read failed
//
// # Upload (UPL)
//
//	UPL001 - Unsupported content type
//	UPL002 - Too many uploads in progress
//	UPL003 - File too large
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//
// # Rate limiting (RATE)
//
//	RATE001 - Too many requests
//
// ERR000 is the fallback; the technical error is in the server log.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sleepimport/internal/archive"
	"github.com/JonMunkholm/sleepimport/internal/sleep"
	"github.com/JonMunkholm/sleepimport/internal/store"
)

// Errors raised by network callers before an import starts.
var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrFileTooLarge           = errors.New("file too large")
	ErrEmptyUpload            = errors.New("empty upload")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// kindMessages maps component error kinds to user messages.
var kindMessages = map[string]UserMessage{
	string(archive.NotAnArchive): {
		Message: "The upload is not a recognised archive",
		Action:  "Upload the .zip file produced by the app's backup export",
		Code:    "ARC001",
	},
	string(archive.PayloadNotFound): {
		Message: "No sleep export CSV was found in the archive",
		Action:  "Make sure the archive contains sleep-export.csv",
		Code:    "ARC002",
	},
	string(sleep.MissingField): {
		Message: "A required column is missing from the export",
		Action:  "Re-export from the app without editing the CSV",
		Code:    "PRS001",
	},
	string(sleep.MalformedTimestamp): {
		Message: "A session has a timestamp in an unexpected format",
		Action:  "Re-export from the app without editing the CSV",
		Code:    "PRS002",
	},
	string(sleep.MalformedTimezone): {
		Message: "A session names an unknown time zone",
		Action:  "Check the Tz column of the reported record",
		Code:    "PRS003",
	},
	string(sleep.InvalidNumeric): {
		Message: "A numeric column holds a non-numeric value",
		Action:  "Check the reported record and column",
		Code:    "PRS004",
	},
	string(sleep.MalformedRow): {
		Message: "The export CSV could not be read",
		Action:  "Re-export from the app and upload again",
		Code:    "PRS005",
	},
	string(store.ConnectionFailed): {
		Message: "Unable to connect to the database",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	},
	string(store.SchemaSetupFailed): {
		Message: "The database could not be prepared",
		Action:  "Check the server log and database permissions",
		Code:    "DB002",
	},
	string(store.WriteFailed): {
		Message: "Saving the sessions failed; nothing from this upload was stored",
		Action:  "Upload again; already stored sessions are skipped",
		Code:    "DB003",
	},
	string(store.ReadFailed): {
		Message: "Reading stored sessions failed",
		Action:  "Please try again",
		Code:    "DB004",
	},
	KindCancelled: {
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	},
	KindTimeout: {
		Message: "Request timed out",
		Action:  "Try again; large exports may need a longer UPLOAD_TIMEOUT",
		Code:    "UPL005",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers errors without a kind. Matching is case-insensitive
// and the first match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "unsupported content type",
		msg: UserMessage{
			Message: "The upload must be an archive",
			Action:  "Send the file with an archive Content-Type such as application/zip",
			Code:    "UPL001",
		},
	},
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Export a shorter date range or raise UPLOAD_MAX_FILE_SIZE",
			Code:    "UPL003",
		},
	},
	{
		pattern: "empty upload",
		msg: UserMessage{
			Message: "The upload is empty",
			Action:  "Attach the exported archive as the request body",
			Code:    "UPL003",
		},
	},
	{
		pattern: "context canceled",
		msg:     kindMessages[KindCancelled],
	},
	{
		pattern: "context deadline exceeded",
		msg:     kindMessages[KindTimeout],
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the server log",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Typed
// component errors are matched by kind; anything else by message pattern.
//
// Example:
//
//	_, err := svc.RunImport(ctx, src)
//	msg := MapError(err)
//	// msg.Code == "ARC002" when the archive had no export inside
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := kindMessages[kindOf(err)]; ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err; it returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
