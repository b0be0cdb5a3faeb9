package sleep

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReader_PairsHeaderWithValues(t *testing.T) {
	input := "Id,Tz,Comment\n1,UTC,first\nId,Comment,Tz\n2,second,Europe/Oslo\n"

	r := NewReader(strings.NewReader(input))

	row, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if row["Id"] != "1" || row["Tz"] != "UTC" || row["Comment"] != "first" {
		t.Errorf("first row = %v", row)
	}

	// Column order differs in the second pair; the header must be re-read.
	row, err = r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if row["Id"] != "2" || row["Tz"] != "Europe/Oslo" || row["Comment"] != "second" {
		t.Errorf("second row = %v", row)
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() at end error = %v, want io.EOF", err)
	}
	if r.Records() != 2 {
		t.Errorf("Records() = %d, want 2", r.Records())
	}
}

func TestReader_EdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantRows  int
		wantCheck func(t *testing.T, rows []Row)
	}{
		{
			name:     "empty input",
			input:    "",
			wantRows: 0,
		},
		{
			name:     "trailing header without values",
			input:    "Id,Tz\n1,UTC\nId,Tz\n",
			wantRows: 1,
		},
		{
			name:     "blank lines between pairs",
			input:    "Id,Tz\n1,UTC\n\n\nId,Tz\n2,UTC\n",
			wantRows: 2,
		},
		{
			name:     "windows line endings",
			input:    "Id,Tz\r\n1,UTC\r\n",
			wantRows: 1,
			wantCheck: func(t *testing.T, rows []Row) {
				if rows[0]["Tz"] != "UTC" {
					t.Errorf("Tz = %q, want UTC", rows[0]["Tz"])
				}
			},
		},
		{
			name:     "duplicate event columns keep first",
			input:    "Id,Event,Event\n1,DEEP_START,DEEP_END\n",
			wantRows: 1,
			wantCheck: func(t *testing.T, rows []Row) {
				if rows[0]["Event"] != "DEEP_START" {
					t.Errorf("Event = %q, want DEEP_START", rows[0]["Event"])
				}
			},
		},
		{
			name:     "short values line drops missing columns",
			input:    "Id,Tz,Geo\n1,UTC\n",
			wantRows: 1,
			wantCheck: func(t *testing.T, rows []Row) {
				if _, ok := rows[0]["Geo"]; ok {
					t.Error("Geo should be absent when the values line is short")
				}
			},
		},
		{
			name:     "bom before first header",
			input:    "\xEF\xBB\xBFId,Tz\n1,UTC\n",
			wantRows: 1,
			wantCheck: func(t *testing.T, rows []Row) {
				if rows[0]["Id"] != "1" {
					t.Errorf("Id = %q, want 1 (BOM must not leak into the header)", rows[0]["Id"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input))
			var rows []Row
			for {
				row, err := r.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("Next() error = %v", err)
				}
				rows = append(rows, row)
			}
			if len(rows) != tt.wantRows {
				t.Fatalf("rows = %d, want %d", len(rows), tt.wantRows)
			}
			if tt.wantCheck != nil {
				tt.wantCheck(t, rows)
			}
		})
	}
}
