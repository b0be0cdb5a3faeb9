// Package analysis computes rolling sleep quantity statistics over stored
// sessions and renders them as a report.
//
// For each window the asleep time of every session that started inside it is
// summed and compared with the window length:
//
//	asleep percent = Σ Record.Asleep() / window * 100
//	awake percent  = 100 - asleep percent
package analysis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/sleepimport/internal/sleep"
)

const day = 24 * time.Hour

// Period is an analysis window measured in whole days back from now.
type Period struct {
	Days int
}

// DefaultPeriods are the 24 hour, 3 day and 7 day windows.
var DefaultPeriods = []Period{{Days: 1}, {Days: 3}, {Days: 7}}

// Length returns the window as a duration.
func (p Period) Length() time.Duration {
	return time.Duration(p.Days) * day
}

// Label is the short name used in reports ("24h", "3d", "7d").
func (p Period) Label() string {
	if p.Days == 1 {
		return "24h"
	}
	return strconv.Itoa(p.Days) + "d"
}

// ParsePeriods converts day counts such as ["1", "3", "7"] into periods.
func ParsePeriods(days []string) ([]Period, error) {
	periods := make([]Period, 0, len(days))
	for _, d := range days {
		n, err := strconv.Atoi(strings.TrimSpace(d))
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", d, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("period %q: must be at least one day", d)
		}
		periods = append(periods, Period{Days: n})
	}
	return periods, nil
}

// Window holds the statistics for one period.
type Window struct {
	Period     Period        `json:"-"`
	Label      string        `json:"label"`
	Sessions   int           `json:"sessions"`
	Asleep     time.Duration `json:"asleep"`
	Awake      time.Duration `json:"awake"`
	SleepRatio float64       `json:"sleep_ratio"` // percent of the window
	AwakeRatio float64       `json:"awake_ratio"` // percent of the window
}

// AvgAsleepHours is the mean asleep time per 24 hours in the window.
func (w Window) AvgAsleepHours() float64 {
	return w.Asleep.Hours() / float64(w.Period.Days)
}

// AvgAwakeHours is the mean awake time per 24 hours in the window.
func (w Window) AvgAwakeHours() float64 {
	return 24 - w.AvgAsleepHours()
}

// Analysis is the result of one pass over the stored sessions.
type Analysis struct {
	GeneratedAt time.Time `json:"generated_at"`
	Windows     []Window  `json:"windows"`
}

// Analyze computes a Window per period ending at now. Sessions count towards a
// window when they started at or after its beginning.
func Analyze(records []sleep.Record, now time.Time, periods []Period) Analysis {
	if len(periods) == 0 {
		periods = DefaultPeriods
	}

	a := Analysis{GeneratedAt: now.UTC(), Windows: make([]Window, 0, len(periods))}
	for _, p := range periods {
		from := now.Add(-p.Length())
		w := Window{Period: p, Label: p.Label()}
		for _, r := range records {
			if r.StartTime.Before(from) {
				continue
			}
			w.Sessions++
			w.Asleep += r.Asleep()
		}

		length := p.Length()
		w.Awake = length - w.Asleep
		w.SleepRatio = float64(w.Asleep) / float64(length) * 100
		w.AwakeRatio = float64(w.Awake) / float64(length) * 100
		a.Windows = append(a.Windows, w)
	}
	return a
}

// Lookback returns the longest period, which bounds the sessions Analyze needs.
func Lookback(periods []Period) time.Duration {
	if len(periods) == 0 {
		periods = DefaultPeriods
	}
	var longest time.Duration
	for _, p := range periods {
		longest = max(longest, p.Length())
	}
	return longest
}

// Lister returns the sessions that started at or after since. *store.Store
// satisfies it.
type Lister interface {
	ListSince(ctx context.Context, since time.Time) ([]sleep.Record, error)
}

// Run loads the sessions needed for periods and analyzes them.
func Run(ctx context.Context, src Lister, now time.Time, periods []Period) (Analysis, error) {
	records, err := src.ListSince(ctx, now.Add(-Lookback(periods)))
	if err != nil {
		return Analysis{}, fmt.Errorf("load sessions: %w", err)
	}
	return Analyze(records, now, periods), nil
}
