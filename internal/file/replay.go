package file

import (
	"bytes"
	"io"
)

// Replay records the bytes pulled from a source stream so that every
// consumer observes the whole stream: first the bytes already read by
// earlier consumers, then the live remainder.
//
// Readers handed out by Replay are only valid until the next Reset.
type Replay struct {
	src io.Reader
	buf bytes.Buffer
}

// Reset starts recording a new source, reusing the internal buffer.
// A nil src represents an entry without content.
func (r *Replay) Reset(src io.Reader) {
	r.src = src
	r.buf.Reset()
}

// Reader returns a reader over the full stream. Bytes it pulls from the
// source are recorded for later readers. It returns nil for entries
// without content.
func (r *Replay) Reader() io.Reader {
	if r.src == nil {
		return nil
	}
	rec := &recorder{r: r}
	if r.buf.Len() == 0 {
		return rec
	}
	prefix := r.buf.Bytes()
	return io.MultiReader(bytes.NewReader(prefix[:len(prefix):len(prefix)]), rec)
}

// Remainder returns a reader over the full stream that does not record.
// It is used once the last consumer has seen the entry.
func (r *Replay) Remainder() io.Reader {
	if r.src == nil {
		return bytes.NewReader(nil)
	}
	if r.buf.Len() == 0 {
		return r.src
	}
	return io.MultiReader(bytes.NewReader(r.buf.Bytes()), r.src)
}

type recorder struct {
	r *Replay
}

func (rc *recorder) Read(p []byte) (int, error) {
	n, err := rc.r.src.Read(p)
	if n > 0 {
		_, _ = rc.r.buf.Write(p[:n]) //nolint:errcheck // bytes.Buffer writes never fail
	}
	return n, err
}
