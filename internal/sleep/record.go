// Package sleep turns rows of a sleep-tracker CSV export into normalized
// session records.
//
// The exporter writes a header line before every values line, so a file is a
// sequence of (header, values) pairs rather than one header followed by data.
// [Reader] re-reads the header for every record and [Parse] converts the
// resulting [Row] into a [Record].
package sleep

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Source column names as written by the exporter.
const (
	FieldID        = "Id"
	FieldTz        = "Tz"
	FieldFrom      = "From"
	FieldTo        = "To"
	FieldHours     = "Hours"
	FieldLenAdjust = "LenAdjust"
	FieldCycles    = "Cycles"
	FieldDeepSleep = "DeepSleep"
	FieldGeo       = "Geo"
	FieldComment   = "Comment"
)

// RequiredFields lists every column a row must carry to be parsed.
var RequiredFields = []string{
	FieldID, FieldTz, FieldFrom, FieldTo, FieldHours,
	FieldLenAdjust, FieldCycles, FieldDeepSleep, FieldGeo, FieldComment,
}

// TimestampLayout is the exporter's local date-time format ("14. 11. 2023 22:00").
const TimestampLayout = "2. 1. 2006 15:04"

// Sentinel values meaning "not available".
const (
	lenAdjustMissing    = -1.0
	cyclesMissing       = -1
	deepSleepMissing    = -1.0
	deepSleepNotTracked = -2.0
)

// Row maps source column names to raw values for one exported session.
type Row map[string]string

// Record is one normalized sleep session.
//
// Optional measurements use pgtype values so they map straight onto nullable
// columns; Valid=false means the exporter reported a sentinel.
type Record struct {
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	SleepDuration float64       `json:"sleep_duration"` // hours asleep
	Cycles        pgtype.Int4   `json:"cycles"`
	DeepSleep     pgtype.Float8 `json:"deep_sleep"` // fraction of the session
	TimeAwake     pgtype.Int4   `json:"time_awake"` // minutes
	LocationHash  string        `json:"location_hash"`
	Comment       string        `json:"comment"`
}

// Key returns the natural key of the record.
func (r Record) Key() time.Time {
	return r.StartTime
}

// Span is the wall-clock length of the session.
func (r Record) Span() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Asleep is the span minus the minutes the tracker marked as awake.
// TimeAwake is unsigned, so a positive LenAdjust also counts as awake time
// here even though SleepDuration adds it.
func (r Record) Asleep() time.Duration {
	d := r.Span()
	if r.TimeAwake.Valid {
		d -= time.Duration(r.TimeAwake.Int32) * time.Minute
	}
	return d
}
