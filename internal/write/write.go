// Package write streams an archive plan out as ZIP bytes.
//
// Two strategies exist and one is chosen per write: without transformers
// every candidate entry is written directly; with transformers each
// candidate is first offered to the live pipeline, and entries emitted by
// transformers are queued and drained breadth-first before the next
// candidate.
package write

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/meigma/zipbuild/internal/file"
	"github.com/meigma/zipbuild/internal/pathutil"
	"github.com/meigma/zipbuild/internal/ziptype"
	"github.com/meigma/zipbuild/mapping"
	"github.com/meigma/zipbuild/source"
	"github.com/meigma/zipbuild/transform"
)

// Resource is a directly added entry. A nil Source marks a directory.
type Resource struct {
	Entry  ziptype.Entry
	Source source.Source
}

// Include is an archive whose entries are re-exported through Mapping.
type Include struct {
	Source  source.Source
	Mapping mapping.Mapping
}

// Plan is everything needed to produce one archive. Resources are written
// in slice order, followed by includes in slice order.
type Plan struct {
	Resources []Resource
	Includes  []Include
	Factories []transform.Factory
}

// Options configures a single write.
type Options struct {
	Logger   *slog.Logger
	Progress ziptype.ProgressFunc
}

// Archive writes plan to w as a ZIP archive and returns the number of bytes
// written. Any error aborts the write; the bytes already written to w must
// be discarded.
func Archive(ctx context.Context, w io.Writer, plan Plan, opts Options) (uint64, error) {
	cw := &file.CountingWriter{W: w}
	wr := &writer{
		ctx:      ctx,
		cw:       cw,
		zw:       zip.NewWriter(cw),
		seen:     newTracker(),
		buf:      make([]byte, 32*1024),
		log:      opts.Logger,
		progress: opts.Progress,
		total:    len(plan.Resources),
	}
	if wr.log == nil {
		wr.log = slog.New(slog.DiscardHandler)
	}
	wr.codecs.register(wr.zw)

	if err := wr.start(plan.Factories); err != nil {
		return cw.N, err
	}
	// Repeated directories are only merged on the fast path.
	wr.seen.strict = wr.live != nil

	wr.stage = ziptype.StageResources
	for _, res := range plan.Resources {
		if err := wr.resource(res); err != nil {
			return cw.N, err
		}
	}

	wr.stage = ziptype.StageIncludes
	for i, inc := range plan.Includes {
		if err := wr.include(i, inc); err != nil {
			return cw.N, err
		}
	}

	wr.stage = ziptype.StageFinishing
	if err := wr.finish(); err != nil {
		return cw.N, err
	}
	if err := wr.zw.Close(); err != nil {
		return cw.N, fmt.Errorf("close archive: %w", err)
	}
	wr.codecs.close()
	if err := wr.report(""); err != nil {
		return cw.N, err
	}
	return cw.N, nil
}

type writer struct {
	ctx    context.Context
	cw     *file.CountingWriter
	zw     *zip.Writer
	codecs codecs
	seen   *tracker
	buf    []byte
	stored bytes.Buffer

	// Transforming path state. live is nil on the fast path.
	live   []transform.Transformer
	queue  []queued
	replay file.Replay

	log      *slog.Logger
	progress ziptype.ProgressFunc
	stage    ziptype.ProgressStage
	done     int
	total    int
}

// content is the byte side of a candidate file entry.
type content struct {
	r io.Reader
	// known is set when CRC-32 and size of the bytes are known up front.
	known bool
	crc   uint32
	size  uint64
}

func (w *writer) resource(res Resource) error {
	if res.Source == nil {
		return w.submit(res.Entry, true, content{})
	}
	rc, err := res.Source.Open(w.ctx)
	if err != nil {
		return sourceErr(res.Entry.Path(), err)
	}
	defer rc.Close()
	return w.submit(res.Entry, false, content{r: rc})
}

// submit routes a candidate entry through the pipeline, or writes it
// directly when there is none.
func (w *writer) submit(e ziptype.Entry, dir bool, c content) error {
	if w.live == nil {
		return w.write(e, dir, c)
	}
	if err := w.feed(e, dir, c, 0); err != nil {
		return err
	}
	return w.drain()
}

// write emits e unless it is a repeated directory on the fast path.
func (w *writer) write(e ziptype.Entry, dir bool, c content) error {
	if !pathutil.IsForwardRelative(e.Path()) {
		return fmt.Errorf("%w: %q", ziptype.ErrInvalidPath, e.Path())
	}
	skip, err := w.seen.add(e.Path(), dir)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}
	if dir {
		err = w.writeDir(e)
	} else {
		err = w.writeFile(e, c)
	}
	if err != nil {
		return err
	}
	w.done++
	return w.report(e.Path())
}

// report emits a progress event. The zip writer is flushed first so that
// BytesWritten counts everything written so far.
func (w *writer) report(path string) error {
	if w.progress == nil {
		return nil
	}
	if err := w.zw.Flush(); err != nil {
		return fmt.Errorf("flush archive: %w", err)
	}
	w.progress(ziptype.ProgressEvent{
		Stage:        w.stage,
		Path:         path,
		EntriesDone:  w.done,
		EntriesTotal: w.total,
		BytesWritten: w.cw.N,
	})
	return nil
}

// sourceErr makes an open failure match ErrSourceNotFound.
func sourceErr(path string, err error) error {
	if errors.Is(err, ziptype.ErrSourceNotFound) {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return fmt.Errorf("%w: %s: %w", ziptype.ErrSourceNotFound, path, err)
}
