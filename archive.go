package zipbuild

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/meigma/zipbuild/internal/file"
	"github.com/meigma/zipbuild/internal/write"
)

// Archive is an immutable archive description produced by Builder.Build.
// It may be written any number of times, concurrently, provided its
// sources can be reopened.
type Archive struct {
	name        string
	plan        write.Plan
	fingerprint Fingerprint
	cfg         config
}

// Name returns the name given to Build.
func (a *Archive) Name() string {
	return a.name
}

// Fingerprint returns the content fingerprint computed at Build.
func (a *Archive) Fingerprint() Fingerprint {
	return a.fingerprint
}

// Entries returns the directly added entries in output order, with the
// default modification time applied.
func (a *Archive) Entries() []Entry {
	entries := make([]Entry, len(a.plan.Resources))
	for i, r := range a.plan.Resources {
		entries[i] = r.Entry
	}
	return entries
}

// Write streams the archive to w. On error the bytes already written to w
// form a truncated archive and must be discarded.
func (a *Archive) Write(ctx context.Context, w io.Writer) error {
	log := a.cfg.log()
	start := time.Now()
	log.Info("writing archive",
		slog.String("name", a.name),
		slog.String("fingerprint", a.fingerprint.String()))

	n, err := write.Archive(ctx, w, a.plan, write.Options{
		Logger:   log,
		Progress: a.cfg.progress,
	})
	if err != nil {
		log.Error("archive write failed", slog.String("name", a.name), slog.Any("error", err))
		return err
	}

	log.Info("archive written",
		slog.String("name", a.name),
		slog.Uint64("bytes", n),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// WriteFile writes the archive to path atomically: the bytes go to a
// temporary file in the same directory which is renamed over path once
// complete.
func (a *Archive) WriteFile(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return file.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return a.Write(ctx, w)
	})
}
