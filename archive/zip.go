package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

// ContentTypesName is written first so OPC consumers that stream the
// package find the manifest before any part.
const ContentTypesName = "[Content_Types].xml"

// Limits bound what Read will inflate from an untrusted ZIP.
type Limits struct {
	MaxEntries    int
	MaxEntrySize  int64
	MaxTotalBytes int64
}

func DefaultLimits() Limits {
	return Limits{
		MaxEntries:    20000,
		MaxEntrySize:  1 << 30,
		MaxTotalBytes: 4 << 30,
	}
}

// IOError reports a failure reading or writing the ZIP container. It is
// fatal for the run.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("archive %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Decode reads a ZIP held in memory.
func Decode(data []byte) (*Archive, error) {
	return Read(bytes.NewReader(data), int64(len(data)))
}

func Read(r io.ReaderAt, size int64) (*Archive, error) {
	return ReadWithLimits(r, size, DefaultLimits())
}

func ReadWithLimits(r io.ReaderAt, size int64, limits Limits) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &IOError{Op: "open", Err: err}
	}
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	if limits.MaxEntries > 0 && len(zr.File) > limits.MaxEntries {
		return nil, &IOError{Op: "open", Err: fmt.Errorf("%d entries exceeds limit %d", len(zr.File), limits.MaxEntries)}
	}

	a := New()
	var total int64
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		name := Normalize(f.Name)
		if name == "" || a.Has(name) {
			continue
		}
		data, err := readEntry(f, limits.MaxEntrySize)
		if err != nil {
			return nil, &IOError{Op: "read", Path: f.Name, Err: err}
		}
		total += int64(len(data))
		if limits.MaxTotalBytes > 0 && total > limits.MaxTotalBytes {
			return nil, &IOError{Op: "read", Path: f.Name, Err: fmt.Errorf("inflated size exceeds limit %d", limits.MaxTotalBytes)}
		}
		a.Set(name, data)
		a.modified[name] = f.Modified
	}
	return a, nil
}

func readEntry(f *zip.File, maxSize int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var src io.Reader = rc
	if maxSize > 0 {
		src = io.LimitReader(rc, maxSize+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("entry exceeds %d bytes", maxSize)
	}
	return data, nil
}

// DOSEpoch (1980-01-01 UTC) is the earliest time a ZIP header can hold.
var DOSEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Write serializes the archive as a ZIP using maximum-level DEFLATE.
func (a *Archive) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	names := make([]string, 0, len(a.order))
	if a.Has(ContentTypesName) {
		names = append(names, ContentTypesName)
	}
	for _, name := range a.order {
		if name != ContentTypesName {
			names = append(names, name)
		}
	}

	// Parts created in memory take the content types entry's time, or the
	// DOS epoch when the archive was never read from a ZIP.
	fallback := a.modified[ContentTypesName]
	if fallback.IsZero() {
		fallback = DOSEpoch
	}
	for _, name := range names {
		modified := a.modified[name]
		if modified.IsZero() {
			modified = fallback
		}
		hdr := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return &IOError{Op: "write", Path: name, Err: err}
		}
		if _, err := fw.Write(a.files[name]); err != nil {
			return &IOError{Op: "write", Path: name, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return &IOError{Op: "close", Err: err}
	}
	return nil
}

// Bytes serializes the archive into memory.
func (a *Archive) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := a.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
