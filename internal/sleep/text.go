package sleep

// text.go cleans the raw byte stream before CSV decoding:
//
//   - BOMSkippingReader drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - UTF8Sanitizer replaces invalid UTF-8 bytes with '?' on the fly
//
// Exports are copied off phones by hand and sometimes pass through editors
// that add a BOM or re-encode comments, so both are applied to every payload.

import (
	"io"
	"unicode/utf8"
)

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	reader  io.Reader
	checked bool
	pending []byte
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. The first call inspects up to three bytes.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		var buf [3]byte
		n, err := io.ReadFull(r.reader, buf[:])
		if n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
			n = 0
		}
		r.pending = append(r.pending, buf[:n]...)

		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && (err != io.EOF || len(r.pending) == 0) {
			return 0, err
		}
	}

	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}

	return r.reader.Read(p)
}

// UTF8Sanitizer wraps an io.Reader and replaces invalid UTF-8 bytes with '?'.
// A multi-byte sequence split across two reads is carried over, not replaced.
type UTF8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

// NewUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	atEOF := err == io.EOF
	write := 0
	for read := 0; read < n; {
		r, size := utf8.DecodeRune(p[read:n])

		if !atEOF && r == utf8.RuneError && size == 1 && incomplete(p[read:n]) {
			s.pending = append(s.pending, p[read:n]...)
			break
		}

		if r == utf8.RuneError && size == 1 {
			p[write] = '?'
			write++
			read++
			continue
		}
		copy(p[write:], p[read:read+size])
		write += size
		read += size
	}

	// Only pending bytes this round; ask the caller to read again.
	if write == 0 && err == nil {
		return s.Read(p)
	}
	return write, err
}

// incomplete reports whether data is a valid but truncated multi-byte prefix.
func incomplete(data []byte) bool {
	want := runeLen(data[0])
	if want <= 1 || len(data) >= want {
		return false
	}
	for _, b := range data[1:] {
		if b&0xC0 != 0x80 {
			return false
		}
	}
	return true
}

// runeLen returns the expected length of a UTF-8 sequence starting with b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}
