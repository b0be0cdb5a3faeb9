package sleep

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Reader yields one Row per (header, values) line pair of an export.
type Reader struct {
	csv     *csv.Reader
	records int
}

// NewReader wraps r with BOM stripping and UTF-8 sanitizing before CSV decoding.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(NewUTF8Sanitizer(NewBOMSkippingReader(r)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return &Reader{csv: cr}
}

// Next returns the next row, or io.EOF when the export is exhausted.
// A header line with no values line after it ends the export.
func (r *Reader) Next() (Row, error) {
	header, err := r.csv.Read()
	if err != nil {
		return nil, r.wrap(err)
	}

	values, err := r.csv.Read()
	if err != nil {
		return nil, r.wrap(err)
	}
	r.records++

	row := make(Row, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" || i >= len(values) {
			continue
		}
		// Trailing event columns repeat names; the first occurrence wins.
		if _, dup := row[name]; dup {
			continue
		}
		row[name] = values[i]
	}
	return row, nil
}

// Records returns how many rows have been read so far.
func (r *Reader) Records() int {
	return r.records
}

func (r *Reader) wrap(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return &ParseError{Kind: MalformedRow, Record: r.records + 1, Err: err}
}
