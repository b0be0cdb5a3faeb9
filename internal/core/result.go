package core

import (
	"time"

	"github.com/JonMunkholm/sleepimport/internal/sleep"
)

// ImportResult is the outcome of a run that reached StageDone. It carries
// everything a caller needs to report the import.
type ImportResult struct {
	ImportID           string          `json:"import_id"`
	Success            bool            `json:"success"`
	Payload            string          `json:"payload"`
	TotalRecords       int             `json:"total_records"`
	NewRecords         int             `json:"new_records"`
	NewRecordSummaries []RecordSummary `json:"new_record_summaries"`
	StartedAt          time.Time       `json:"started_at"`
	Duration           time.Duration   `json:"-"`
	DurationMS         int64           `json:"duration_ms"`
}

// RecordSummary is the reportable part of a newly stored session.
type RecordSummary struct {
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	SleepDuration float64   `json:"sleep_duration"`
	Cycles        *int32    `json:"cycles,omitempty"`
	DeepSleep     *float64  `json:"deep_sleep,omitempty"`
	TimeAwake     *int32    `json:"time_awake,omitempty"`
	Comment       string    `json:"comment,omitempty"`
}

// Summarize converts a record for reporting.
func Summarize(r sleep.Record) RecordSummary {
	s := RecordSummary{
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		SleepDuration: r.SleepDuration,
		Comment:       r.Comment,
	}
	if r.Cycles.Valid {
		v := r.Cycles.Int32
		s.Cycles = &v
	}
	if r.DeepSleep.Valid {
		v := r.DeepSleep.Float64
		s.DeepSleep = &v
	}
	if r.TimeAwake.Valid {
		v := r.TimeAwake.Int32
		s.TimeAwake = &v
	}
	return s
}
