// Package transform defines the transformer pipeline contract and a set of
// built-in transformers.
//
// A Factory is registered on a builder and produces one fresh Transformer per
// archive write. Each candidate entry is offered to the live transformers in
// registration order. A transformer passes the entry on (possibly rewritten),
// consumes it, and may emit new entries as part of its Result.
//
// Entries emitted by Process enter the pipeline from the first transformer.
// Entries returned by Flush enter from the flushing transformer onward.
// Entries returned by End enter the transformers still live after it, so an
// ended transformer never sees its own output.
package transform

import (
	"io"

	"github.com/meigma/zipbuild/internal/codec"
	"github.com/meigma/zipbuild/internal/ziptype"
)

// Entry is the archive entry type transformers operate on.
type Entry = ziptype.Entry

// Pending is an entry emitted by a transformer, queued for writing.
type Pending struct {
	Entry Entry
	Data  []byte
	Dir   bool
}

// File returns a pending file entry with the given content.
func File(e Entry, data []byte) Pending {
	return Pending{Entry: e, Data: data}
}

// Directory returns a pending directory entry.
func Directory(e Entry) Pending {
	return Pending{Entry: e, Dir: true}
}

// Result is the outcome of offering an entry to a transformer.
type Result struct {
	// Entry is the entry passed to the next transformer. Ignored when
	// Consumed is set.
	Entry Entry
	// Consumed stops the entry here; nothing is written for it.
	Consumed bool
	// Emitted entries are queued and offered to the pipeline after the
	// current entry is done.
	Emitted []Pending
}

// Pass returns a result that forwards e.
func Pass(e Entry, emitted ...Pending) Result {
	return Result{Entry: e, Emitted: emitted}
}

// Consume returns a result that drops the current entry.
func Consume(emitted ...Pending) Result {
	return Result{Consumed: true, Emitted: emitted}
}

// Transformer intercepts entries during a single archive write.
type Transformer interface {
	// Process is called once per candidate entry. r is nil for directory
	// entries. For files, r yields the entry bytes; a transformer that
	// passes the entry on may leave r partially read and the next stage
	// still sees the full content.
	Process(e Entry, r io.Reader) (Result, error)
}

// Flusher is implemented by transformers that buffer entries. Flush is
// called after all source entries were offered.
type Flusher interface {
	Flush() ([]Pending, error)
}

// Ender is implemented by transformers that emit entries when retired.
type Ender interface {
	End() ([]Pending, error)
}

// Factory creates transformers. Factories must be stateless and comparable
// by value; their structural key takes part in the archive fingerprint.
type Factory interface {
	NewTransformer() Transformer
}

// Key returns the structural identity of f. Factories implementing
// encoding.BinaryMarshaler control their own encoding.
func Key(f Factory) ([]byte, error) {
	return codec.Key(f)
}
