package cache

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/zipbuild"
	"github.com/meigma/zipbuild/internal/file"
)

// Store materializes archives through a Backend.
//
// Store uses singleflight to deduplicate concurrent builds of archives with
// the same fingerprint.
type Store struct {
	backend Backend
	group   singleflight.Group
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for cache hits, misses and store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock sets the time source used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns a Store backed by backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, now: time.Now}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Result is a materialized archive.
type Result struct {
	// Descriptor identifies the archive bytes.
	Descriptor ocispec.Descriptor
	// Data holds the archive bytes. It must not be modified.
	Data []byte
	// Hit reports whether Data came from the backend.
	Hit bool
}

// Materialize returns the bytes of a, from the backend when an archive with
// the same fingerprint is stored and by writing a otherwise. Newly built
// archives are stored; failing to store them is logged, not returned.
//
// Concurrent calls for the same fingerprint share one build, which runs
// under the context of the first caller.
func (s *Store) Materialize(ctx context.Context, a *zipbuild.Archive) (Result, error) {
	key := a.Fingerprint().Digest()
	log := s.log().With(slog.String("name", a.Name()), slog.String("fingerprint", key.String()))

	// Fast path avoids singleflight overhead.
	if rec, data, ok := s.backend.Get(key); ok {
		log.Debug("cache hit")
		return result(a, rec, data, true), nil
	}

	v, err, shared := s.group.Do(key.String(), func() (any, error) {
		if rec, data, ok := s.backend.Get(key); ok {
			return result(a, rec, data, true), nil
		}
		log.Debug("cache miss")

		var buf bytes.Buffer
		if err := a.Write(ctx, &buf); err != nil {
			return nil, err
		}
		data := buf.Bytes()
		rec := Record{
			Fingerprint: key,
			Digest:      digest.FromBytes(data),
			Size:        int64(len(data)),
			Entries:     len(a.Entries()),
			Created:     s.now(),
		}
		if err := s.backend.Put(rec, data); err != nil {
			log.Warn("cache store failed", slog.Any("error", err))
		}
		return result(a, rec, data, false), nil
	})
	if err != nil {
		return Result{}, err
	}
	if shared {
		log.Debug("shared build")
	}
	res, _ := v.(Result) //nolint:errcheck // type assertion always succeeds when err is nil
	return res, nil
}

// WriteFile writes the result bytes to path through a temporary file in the
// same directory.
func (r Result) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return file.WriteAtomic(path, 0o644, file.WriteBytes(r.Data))
}

func result(a *zipbuild.Archive, rec Record, data []byte, hit bool) Result {
	return Result{
		Descriptor: ocispec.Descriptor{
			MediaType: MediaTypeZip,
			Digest:    rec.Digest,
			Size:      rec.Size,
			Annotations: map[string]string{
				ocispec.AnnotationTitle: a.Name(),
				AnnotationFingerprint:   rec.Fingerprint.String(),
			},
		},
		Data: data,
		Hit:  hit,
	}
}

// log returns the configured logger or a discard logger if none was set.
func (s *Store) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.New(slog.DiscardHandler)
}

func validate(rec Record, content []byte) error {
	if err := rec.Fingerprint.Validate(); err != nil {
		return fmt.Errorf("invalid fingerprint: %w", err)
	}
	if int64(len(content)) != rec.Size {
		return fmt.Errorf("size mismatch: record %d, content %d", rec.Size, len(content))
	}
	if err := rec.Digest.Validate(); err != nil {
		return fmt.Errorf("invalid digest: %w", err)
	}
	if got := rec.Digest.Algorithm().FromBytes(content); got != rec.Digest {
		return fmt.Errorf("%w: record %s, content %s", ErrDigestMismatch, rec.Digest, got)
	}
	return nil
}
