// Package archive finds the sleep export CSV inside a user-supplied archive.
//
// The archive format is not fixed: the phone app writes a zip, but users also
// re-compress exports (tar.gz, 7z, a bare .csv.gz) before uploading. Format
// detection is delegated to github.com/mholt/archives, which identifies the
// container from its header bytes and the file name when one is known.
//
// Everything pulled out of the archive lands in a private temporary directory.
// The directory is removed when Extract fails, or when the returned Payload is
// closed.
package archive

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
)

// PayloadName is the file name the exporter gives the CSV.
const PayloadName = "sleep-export.csv"

// MaxPayloadSize caps any single file pulled out of an archive.
var MaxPayloadSize int64 = 256 * 1024 * 1024

// maxDepth bounds how many containers may be nested inside each other.
const maxDepth = 3

// errFound stops an archive walk once the exact payload has been copied out.
var errFound = errors.New("payload found")

// nestedExts are entry names worth opening when no CSV sits at the top level.
var nestedExts = []string{".zip", ".tar", ".tgz", ".gz", ".bz2", ".xz", ".zst", ".7z", ".rar"}

// Source is the input to Extract: an in-memory buffer or a file on disk.
type Source struct {
	// Name is used as a format hint (its extension); it may be empty.
	Name string
	Data []byte
	Path string
}

// FromBytes returns a Source for an archive held in memory.
func FromBytes(name string, data []byte) Source {
	return Source{Name: name, Data: data}
}

// FromPath returns a Source for an archive on disk.
func FromPath(p string) Source {
	return Source{Name: filepath.Base(p), Path: p}
}

type seekReaderAt interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

func (s Source) open() (seekReaderAt, func(), error) {
	if s.Path == "" {
		return bytes.NewReader(s.Data), func() {}, nil
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// Payload is the extracted CSV. Close removes the temporary extraction area.
type Payload struct {
	// Name is the payload's path inside the archive.
	Name string
	Size int64

	file *os.File
	dir  string
}

// Read implements io.Reader.
func (p *Payload) Read(b []byte) (int, error) {
	return p.file.Read(b)
}

// Close releases the payload file and deletes the extraction directory.
func (p *Payload) Close() error {
	closeErr := p.file.Close()
	if err := os.RemoveAll(p.dir); err != nil {
		return fmt.Errorf("remove extraction dir: %w", err)
	}
	return closeErr
}

// Extract locates the export CSV inside src.
//
// The payload is matched by exact name first; failing that, the first entry
// whose lower-cased name ends in .csv and contains "sleep". Input that is not
// a recognizable container fails with NotAnArchive; a container without a
// matching entry fails with PayloadNotFound.
func Extract(ctx context.Context, src Source) (_ *Payload, err error) {
	input, closeInput, err := src.open()
	if err != nil {
		return nil, err
	}
	defer closeInput()

	dir, err := os.MkdirTemp("", "sleep-export-*")
	if err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	x := &extractor{dir: dir, limit: MaxPayloadSize}
	found, err := x.find(ctx, input, src.Name, 0)
	if err != nil {
		// A cancelled read looks like a truncated archive; report the cause.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("extract %s: %w", src.Name, ctxErr)
		}
		return nil, err
	}

	f, err := os.Open(found.path)
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}
	return &Payload{Name: found.name, Size: found.size, file: f, dir: dir}, nil
}

type extractor struct {
	dir   string
	limit int64
}

type entry struct {
	path string // location in the extraction dir
	name string // name inside the archive
	size int64
}

func (x *extractor) find(ctx context.Context, in seekReaderAt, name string, depth int) (entry, error) {
	format, _, err := archives.Identify(ctx, name, in)
	if err != nil {
		return entry{}, notAnArchive(err)
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return entry{}, fmt.Errorf("rewind archive: %w", err)
	}

	switch f := format.(type) {
	case archives.Extractor:
		return x.walk(ctx, f, in, depth)
	case archives.Decompressor:
		return x.decompress(ctx, f, in, name, depth)
	default:
		return entry{}, notAnArchive(fmt.Errorf("unsupported format %s", format.Extension()))
	}
}

// walk visits every file in an archive, copying out the best payload candidate.
func (x *extractor) walk(ctx context.Context, ex archives.Extractor, in io.Reader, depth int) (entry, error) {
	var exact, fuzzy entry
	var nested []entry
	var copyErr error

	err := ex.Extract(ctx, in, func(ctx context.Context, f archives.FileInfo) error {
		if !f.Mode().IsRegular() {
			return nil
		}
		base := strings.ToLower(path.Base(f.NameInArchive))

		switch {
		case path.Base(f.NameInArchive) == PayloadName:
			exact, copyErr = x.copyEntry(f)
			if copyErr != nil {
				return copyErr
			}
			return errFound
		case fuzzy.path == "" && isCandidate(base):
			fuzzy, copyErr = x.copyEntry(f)
			return copyErr
		case depth < maxDepth && isNested(base):
			e, err := x.copyEntry(f)
			if err != nil {
				copyErr = err
				return err
			}
			nested = append(nested, e)
		}
		return nil
	})

	if copyErr != nil {
		return entry{}, copyErr
	}
	if err != nil && !errors.Is(err, errFound) {
		return entry{}, notAnArchive(err)
	}

	if exact.path != "" {
		return exact, nil
	}
	if fuzzy.path != "" {
		return fuzzy, nil
	}

	for _, n := range nested {
		found, err := x.findIn(ctx, n, depth+1)
		if err == nil {
			return found, nil
		}
		var ae *Error
		if !errors.As(err, &ae) {
			return entry{}, err
		}
	}

	return entry{}, &Error{Kind: PayloadNotFound, Err: fmt.Errorf("no %s in archive", PayloadName)}
}

// decompress handles single-stream formats such as .gz: the inner stream is
// either another container or the CSV itself.
func (x *extractor) decompress(ctx context.Context, d archives.Decompressor, in io.Reader, name string, depth int) (entry, error) {
	if depth >= maxDepth {
		return entry{}, notAnArchive(fmt.Errorf("nested more than %d levels", maxDepth))
	}

	rc, err := d.OpenReader(in)
	if err != nil {
		return entry{}, notAnArchive(err)
	}
	defer rc.Close()

	inner := strings.TrimSuffix(name, path.Ext(name))
	e, err := x.spill(rc, inner)
	if err != nil {
		return entry{}, err
	}

	found, err := x.findIn(ctx, e, depth+1)
	if errors.Is(err, ErrNotAnArchive) && looksLikeExport(e.path) {
		if e.name == "" {
			e.name = PayloadName
		}
		return e, nil
	}
	return found, err
}

func (x *extractor) findIn(ctx context.Context, e entry, depth int) (entry, error) {
	f, err := os.Open(e.path)
	if err != nil {
		return entry{}, fmt.Errorf("open nested archive: %w", err)
	}
	defer f.Close()
	return x.find(ctx, f, path.Base(e.name), depth)
}

func (x *extractor) copyEntry(f archives.FileInfo) (entry, error) {
	rc, err := f.Open()
	if err != nil {
		return entry{}, notAnArchive(fmt.Errorf("open %s: %w", f.NameInArchive, err))
	}
	defer rc.Close()
	return x.spill(rc, f.NameInArchive)
}

// spill copies r into a new file in the extraction dir, enforcing the size cap.
func (x *extractor) spill(r io.Reader, name string) (entry, error) {
	out, err := os.CreateTemp(x.dir, "entry-*")
	if err != nil {
		return entry{}, fmt.Errorf("create temp file: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(r, x.limit+1))
	if err != nil {
		return entry{}, notAnArchive(fmt.Errorf("read %s: %w", name, err))
	}
	if n > x.limit {
		return entry{}, notAnArchive(fmt.Errorf("%s exceeds %d bytes", name, x.limit))
	}
	return entry{path: out.Name(), name: name, size: n}, nil
}

func isCandidate(lowerBase string) bool {
	return strings.HasSuffix(lowerBase, ".csv") && strings.Contains(lowerBase, "sleep")
}

func isNested(lowerBase string) bool {
	for _, ext := range nestedExts {
		if strings.HasSuffix(lowerBase, ext) {
			return true
		}
	}
	return false
}

// looksLikeExport sniffs the first line for the exporter's leading Id column.
func looksLikeExport(p string) bool {
	f, err := os.Open(p)
	if err != nil {
		return false
	}
	defer f.Close()

	line, _ := bufio.NewReader(f).ReadString('\n')
	line = strings.TrimPrefix(line, "\xEF\xBB\xBF")
	return strings.HasPrefix(line, "Id,")
}
