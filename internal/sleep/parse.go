package sleep

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone names must resolve the same on every host

	"github.com/jackc/pgx/v5/pgtype"
)

// Parse converts one exported row into a Record.
//
// start_time comes from the Id column (milliseconds since the Unix epoch, UTC).
// end_time is the To column interpreted in the row's Tz zone. The local From
// column is required but not used for the key: the epoch id is what the
// exporter itself treats as the session identity.
func Parse(row Row) (Record, error) {
	for _, name := range RequiredFields {
		if _, ok := row[name]; !ok {
			return Record{}, &ParseError{Kind: MissingField, Field: name}
		}
	}

	start, err := parseEpochMillis(row[FieldID])
	if err != nil {
		return Record{}, err
	}

	loc, err := loadZone(row[FieldTz])
	if err != nil {
		return Record{}, err
	}

	end, err := parseLocal(FieldTo, row[FieldTo], loc)
	if err != nil {
		return Record{}, err
	}

	hours, err := parseFloat(FieldHours, row[FieldHours])
	if err != nil {
		return Record{}, err
	}

	lenAdjust, err := parseFloat(FieldLenAdjust, row[FieldLenAdjust])
	if err != nil {
		return Record{}, err
	}
	// time_awake is stored as a 32-bit minute count.
	if math.Abs(lenAdjust) > math.MaxInt32 {
		return Record{}, &ParseError{Kind: InvalidNumeric, Field: FieldLenAdjust, Value: row[FieldLenAdjust],
			Err: fmt.Errorf("%v minutes is out of range", lenAdjust)}
	}

	cycles, err := parseCycles(row[FieldCycles])
	if err != nil {
		return Record{}, err
	}

	deepSleep, err := parseDeepSleep(row[FieldDeepSleep])
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		StartTime:     start,
		EndTime:       end,
		SleepDuration: hours,
		Cycles:        cycles,
		DeepSleep:     deepSleep,
		LocationHash:  row[FieldGeo],
		Comment:       row[FieldComment],
	}

	// LenAdjust is minutes awake inside the span, recorded as a negative number.
	if lenAdjust != lenAdjustMissing {
		rec.SleepDuration = hours + lenAdjust/60
		rec.TimeAwake = pgtype.Int4{Int32: int32(math.Abs(lenAdjust)), Valid: true}
	}

	return rec, nil
}

// ParseAll reads every record from an export and parses it.
// The first failure aborts the whole read; nothing is returned alongside it.
func ParseAll(r io.Reader) ([]Record, error) {
	reader := NewReader(r)

	var records []Record
	for {
		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}

		rec, err := Parse(row)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Record = reader.Records()
			}
			return nil, err
		}
		records = append(records, rec)
	}
}

func parseEpochMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, &ParseError{Kind: MalformedTimestamp, Field: FieldID, Value: raw, Err: err}
	}
	return time.UnixMilli(ms).UTC(), nil
}

func loadZone(raw string) (*time.Location, error) {
	name := strings.TrimSpace(raw)
	// LoadLocation maps "" to UTC and "Local" to the host zone; neither is a real export value.
	if name == "" || name == "Local" {
		return nil, &ParseError{Kind: MalformedTimezone, Field: FieldTz, Value: raw}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &ParseError{Kind: MalformedTimezone, Field: FieldTz, Value: raw, Err: err}
	}
	return loc, nil
}

func parseLocal(field, raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, &ParseError{Kind: MalformedTimestamp, Field: field, Value: raw, Err: err}
	}
	return t, nil
}

func parseFloat(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &ParseError{Kind: InvalidNumeric, Field: field, Value: raw, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseError{Kind: InvalidNumeric, Field: field, Value: raw, Err: fmt.Errorf("not a finite number")}
	}
	return v, nil
}

func parseCycles(raw string) (pgtype.Int4, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return pgtype.Int4{}, &ParseError{Kind: InvalidNumeric, Field: FieldCycles, Value: raw, Err: err}
	}
	if n == cyclesMissing {
		return pgtype.Int4{}, nil
	}
	return pgtype.Int4{Int32: int32(n), Valid: true}, nil
}

func parseDeepSleep(raw string) (pgtype.Float8, error) {
	v, err := parseFloat(FieldDeepSleep, raw)
	if err != nil {
		return pgtype.Float8{}, err
	}
	if v == deepSleepMissing || v == deepSleepNotTracked {
		return pgtype.Float8{}, nil
	}
	return pgtype.Float8{Float64: v, Valid: true}, nil
}
