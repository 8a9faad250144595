// Package source provides the byte sources that feed archive resources and
// included archives.
//
// A Source can be opened once per archive write, possibly many times over the
// life of an archive, and reports a content identity used for fingerprinting.
// Sources used as includes are compared by identity (==), so implementations
// are pointer types.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/zipbuild/internal/ziptype"
)

// Source supplies the bytes of a resource or included archive.
type Source interface {
	// Open returns a fresh stream over the full content.
	Open(ctx context.Context) (io.ReadCloser, error)
	// ContentID identifies the content. Equal IDs imply equal bytes.
	ContentID() digest.Digest
}

// ReaderAt is random access over a source's content.
type ReaderAt interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// RandomAccess is implemented by sources that support positioned reads
// without buffering the whole content.
type RandomAccess interface {
	OpenReaderAt(ctx context.Context) (ReaderAt, error)
}

// OpenReaderAt returns random access over s. Sources that do not implement
// RandomAccess are read fully into memory.
func OpenReaderAt(ctx context.Context, s Source) (ReaderAt, error) {
	if ra, ok := s.(RandomAccess); ok {
		return ra.OpenReaderAt(ctx)
	}
	rc, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return newBytesReaderAt(data), nil
}

// Bytes is an in-memory source.
type Bytes struct {
	data []byte
	id   digest.Digest
}

// FromBytes returns a source over data. The slice must not be modified
// afterwards.
func FromBytes(data []byte) *Bytes {
	return &Bytes{data: data, id: digest.FromBytes(data)}
}

// FromString returns a source over s.
func FromString(s string) *Bytes {
	return FromBytes([]byte(s))
}

// Open implements Source.
func (b *Bytes) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// OpenReaderAt implements RandomAccess.
func (b *Bytes) OpenReaderAt(context.Context) (ReaderAt, error) {
	return newBytesReaderAt(b.data), nil
}

// ContentID implements Source.
func (b *Bytes) ContentID() digest.Digest {
	return b.id
}

// Size returns the content length.
func (b *Bytes) Size() int64 {
	return int64(len(b.data))
}

type bytesReaderAt struct {
	*bytes.Reader
}

func newBytesReaderAt(data []byte) bytesReaderAt {
	return bytesReaderAt{Reader: bytes.NewReader(data)}
}

func (bytesReaderAt) Close() error { return nil }

// notFound wraps an open failure so that it matches ErrSourceNotFound.
func notFound(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ziptype.ErrSourceNotFound, what, err)
}
