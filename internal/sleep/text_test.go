package sleep

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("Id,Tz")...),
			expected: "Id,Tz",
		},
		{
			name:     "file without BOM",
			input:    []byte("Id,Tz"),
			expected: "Id,Tz",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "shorter than BOM",
			input:    []byte("Id"),
			expected: "Id",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewBOMSkippingReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{name: "ascii unchanged", input: []byte("hello,world"), expected: "hello,world"},
		{name: "valid multibyte unchanged", input: []byte("spánek, 睡眠"), expected: "spánek, 睡眠"},
		{name: "invalid byte replaced", input: []byte("caf\xe9 noir"), expected: "caf? noir"},
		{name: "lone continuation byte", input: []byte("a\xbfb"), expected: "a?b"},
		{name: "truncated sequence at EOF", input: []byte("ab\xe4\xb8"), expected: "ab??"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer_SplitAcrossReads(t *testing.T) {
	// OneByteReader forces every multi-byte rune to arrive in pieces.
	input := []byte("noc: 睡眠 ok")
	result, err := io.ReadAll(NewUTF8Sanitizer(iotest.OneByteReader(bytes.NewReader(input))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != string(input) {
		t.Errorf("got %q, want %q", result, input)
	}
}
