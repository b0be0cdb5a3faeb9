package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sleepimport/internal/core"
)

// maxListedSessions caps the per-session lines in an import message.
const maxListedSessions = 10

const sessionLayout = "2006-01-02 15:04 MST"

// ImportMessage describes a finished import.
//
//	Sleep data processed successfully. 412 records processed, 2 new records added.
//	- 2023-11-14 22:13 UTC → 2023-11-15 06:00 UTC, 7.5h asleep
func ImportMessage(r *core.ImportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sleep data processed successfully. %d records processed, %d new records added.",
		r.TotalRecords, r.NewRecords)

	for i, s := range r.NewRecordSummaries {
		if i == maxListedSessions {
			fmt.Fprintf(&b, "\n…and %d more", len(r.NewRecordSummaries)-maxListedSessions)
			break
		}
		fmt.Fprintf(&b, "\n- %s → %s, %.1fh asleep",
			s.StartTime.UTC().Format(sessionLayout), s.EndTime.UTC().Format(sessionLayout), s.SleepDuration)
		if s.Comment != "" {
			fmt.Fprintf(&b, " %s", s.Comment)
		}
	}
	return b.String()
}

// FailureMessage describes a failed import using its user-facing code.
func FailureMessage(err error) string {
	msg := "Sleep data import failed: " + core.FormatUserError(err)

	var ie *core.ImportError
	if errors.As(err, &ie) {
		msg += fmt.Sprintf(" (stage: %s, import: %s)", ie.Stage, ie.ImportID)
	}
	return msg
}
