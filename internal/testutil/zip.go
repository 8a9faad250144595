// Package testutil provides helpers for building and inspecting ZIP
// archives in tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

// zstdMethod is the ZIP method code of Zstandard entries.
const zstdMethod = 93

// WithZstd registers a Zstandard decompressor on a reader opened by ReadZip.
func WithZstd() func(*zip.Reader) {
	return func(zr *zip.Reader) {
		zr.RegisterDecompressor(zstdMethod, func(r io.Reader) io.ReadCloser {
			dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return io.NopCloser(errReader{err})
			}
			return dec.IOReadCloser()
		})
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// ZipEntry describes one entry of a fixture archive. Names ending in "/"
// are directories.
type ZipEntry struct {
	Name     string
	Data     string
	Method   uint16
	Modified time.Time
}

// BuildZip writes entries into an in-memory archive in the given order.
func BuildZip(tb testing.TB, entries ...ZipEntry) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		fh := &zip.FileHeader{Name: e.Name, Method: e.Method, Modified: e.Modified}
		w, err := zw.CreateHeader(fh)
		if err != nil {
			tb.Fatalf("create %s: %v", e.Name, err)
		}
		if strings.HasSuffix(e.Name, "/") {
			continue
		}
		if _, err := io.WriteString(w, e.Data); err != nil {
			tb.Fatalf("write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// ZipFile is an entry read back from an archive.
type ZipFile struct {
	Name     string
	Dir      bool
	Method   uint16
	Data     string
	CRC32    uint32
	Size     uint64
	Modified time.Time
	Flags    uint16
}

// ReadZip returns the entries of an archive in central directory order.
// Entry contents are verified against their CRC-32.
func ReadZip(tb testing.TB, data []byte, opts ...func(*zip.Reader)) []ZipFile {
	tb.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		tb.Fatalf("open zip: %v", err)
	}
	for _, opt := range opts {
		opt(zr)
	}
	files := make([]ZipFile, 0, len(zr.File))
	for _, f := range zr.File {
		zf := ZipFile{
			Name:     f.Name,
			Dir:      strings.HasSuffix(f.Name, "/"),
			Method:   f.Method,
			CRC32:    f.CRC32,
			Size:     f.UncompressedSize64,
			Modified: f.Modified,
			Flags:    f.Flags,
		}
		if !zf.Dir {
			rc, err := f.Open()
			if err != nil {
				tb.Fatalf("open %s: %v", f.Name, err)
			}
			b, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				tb.Fatalf("read %s: %v", f.Name, err)
			}
			zf.Data = string(b)
		}
		files = append(files, zf)
	}
	return files
}

// Names returns the entry names of files in order.
func Names(files []ZipFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

// Find returns the entry named name.
func Find(tb testing.TB, files []ZipFile, name string) ZipFile {
	tb.Helper()
	for _, f := range files {
		if f.Name == name {
			return f
		}
	}
	tb.Fatalf("entry %q not found in %v", name, Names(files))
	return ZipFile{}
}
