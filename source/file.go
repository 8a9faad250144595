package source

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
	"github.com/zeebo/blake3"
)

// Blake3 is the digest algorithm used for local file content IDs.
const Blake3 digest.Algorithm = "blake3"

// File is a source backed by a local file. The content ID is computed when
// the source is created; later modifications are not observed by it.
type File struct {
	path string
	size int64
	id   digest.Digest
}

// NewFile hashes the file at path and returns a source for it.
func NewFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, notFound(path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, notFound(path, err)
	}
	if info.IsDir() {
		return nil, notFound(path, errors.New("is a directory"))
	}

	h := blake3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}
	return &File{
		path: path,
		size: n,
		id:   digest.NewDigestFromEncoded(Blake3, hex.EncodeToString(h.Sum(nil))),
	}, nil
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Size returns the file size observed when the source was created.
func (f *File) Size() int64 {
	return f.size
}

// Open implements Source.
func (f *File) Open(context.Context) (io.ReadCloser, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, notFound(f.path, err)
	}
	return fh, nil
}

// OpenReaderAt implements RandomAccess.
func (f *File) OpenReaderAt(context.Context) (ReaderAt, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, notFound(f.path, err)
	}
	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, notFound(f.path, err)
	}
	return &fileReaderAt{File: fh, size: info.Size()}, nil
}

// ContentID implements Source.
func (f *File) ContentID() digest.Digest {
	return f.id
}

type fileReaderAt struct {
	*os.File
	size int64
}

func (f *fileReaderAt) Size() int64 { return f.size }
