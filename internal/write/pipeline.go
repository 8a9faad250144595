package write

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"

	"github.com/meigma/zipbuild/internal/ziptype"
	"github.com/meigma/zipbuild/transform"
)

// queued is a transformer-emitted entry waiting to be offered to the
// pipeline, starting at transformer index start.
type queued struct {
	p     transform.Pending
	start int
}

// start instantiates one transformer per factory. It leaves the fast path
// selected when there are no factories.
func (w *writer) start(factories []transform.Factory) error {
	if len(factories) == 0 {
		return nil
	}
	w.live = make([]transform.Transformer, 0, len(factories))
	for i, f := range factories {
		t := f.NewTransformer()
		if t == nil {
			return fmt.Errorf("%w: factory %d (%T)", ziptype.ErrNullTransformer, i, f)
		}
		w.live = append(w.live, t)
	}
	w.log.Debug("transformers started", slog.Int("count", len(w.live)))
	return nil
}

// feed offers one entry to the live transformers from index start on and
// writes it if none consumes it.
func (w *writer) feed(e ziptype.Entry, dir bool, c content, start int) error {
	if dir {
		w.replay.Reset(nil)
	} else {
		w.replay.Reset(readerOrEmpty(c))
	}
	for i := start; i < len(w.live); i++ {
		res, err := w.live[i].Process(e, w.replay.Reader())
		if err != nil {
			return transformerErr("process "+e.Path(), i, err)
		}
		w.enqueue(res.Emitted, 0)
		if res.Consumed {
			return nil
		}
		e = res.Entry
	}
	if !dir {
		c.r = w.replay.Remainder()
	}
	return w.write(e, dir, c)
}

func (w *writer) enqueue(ps []transform.Pending, start int) {
	for _, p := range ps {
		w.queue = append(w.queue, queued{p: p, start: start})
	}
}

// drain feeds queued entries in FIFO order until the queue is empty.
func (w *writer) drain() error {
	for len(w.queue) > 0 {
		q := w.queue[0]
		w.queue[0] = queued{}
		w.queue = w.queue[1:]

		c := content{}
		if !q.p.Dir {
			c = content{
				r:     bytes.NewReader(q.p.Data),
				known: true,
				crc:   crc32.ChecksumIEEE(q.p.Data),
				size:  uint64(len(q.p.Data)),
			}
		}
		if err := w.feed(q.p.Entry, q.p.Dir, c, q.start); err != nil {
			return err
		}
	}
	w.queue = nil
	return nil
}

// finish flushes every live transformer in order, then retires them one by
// one. A retired transformer is removed before End is called, so entries it
// emits are only seen by the transformers after it.
func (w *writer) finish() error {
	if w.live == nil {
		return nil
	}
	for i, t := range w.live {
		f, ok := t.(transform.Flusher)
		if !ok {
			continue
		}
		w.log.Debug("flushing transformer", slog.Int("index", i))
		emitted, err := f.Flush()
		if err != nil {
			return transformerErr("flush", i, err)
		}
		w.enqueue(emitted, i)
		if err := w.drain(); err != nil {
			return err
		}
	}

	for idx := 0; len(w.live) > 0; idx++ {
		t := w.live[0]
		w.live = w.live[1:]
		ender, ok := t.(transform.Ender)
		if !ok {
			continue
		}
		w.log.Debug("ending transformer", slog.Int("index", idx))
		emitted, err := ender.End()
		if err != nil {
			return transformerErr("end", idx, err)
		}
		w.enqueue(emitted, 0)
		if err := w.drain(); err != nil {
			return err
		}
	}
	return nil
}

func readerOrEmpty(c content) io.Reader {
	if c.r == nil {
		return emptyReader{}
	}
	return c.r
}

// transformerErr wraps a transformer failure so that both ErrTransformer
// and the underlying cause match.
func transformerErr(op string, idx int, err error) error {
	return fmt.Errorf("%w: transformer %d: %s: %w", ziptype.ErrTransformer, idx, op, err)
}
