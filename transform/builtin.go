package transform

import (
	"io"
	"time"

	"github.com/meigma/zipbuild/internal/pathutil"
)

// Identity passes every entry through unchanged.
type Identity struct{}

// NewTransformer implements Factory.
func (Identity) NewTransformer() Transformer { return identity{} }

type identity struct{}

func (identity) Process(e Entry, _ io.Reader) (Result, error) {
	return Pass(e), nil
}

// SkipDirectories drops directory entries.
type SkipDirectories struct{}

// NewTransformer implements Factory.
func (SkipDirectories) NewTransformer() Transformer { return skipDirectories{} }

type skipDirectories struct{}

func (skipDirectories) Process(e Entry, r io.Reader) (Result, error) {
	if r == nil {
		return Consume(), nil
	}
	return Pass(e), nil
}

// MoveToDirectory prefixes Dir onto every entry path.
type MoveToDirectory struct {
	Dir string
}

// NewTransformer implements Factory.
func (f MoveToDirectory) NewTransformer() Transformer {
	return moveToDirectory{dir: f.Dir}
}

type moveToDirectory struct {
	dir string
}

func (t moveToDirectory) Process(e Entry, _ io.Reader) (Result, error) {
	return Pass(e.WithPath(pathutil.Join(t.dir, e.Path()))), nil
}

// OffsetModTime shifts entry modification times by Offset. Entries without
// an explicit time are shifted from the Unix epoch.
type OffsetModTime struct {
	Offset time.Duration
}

// NewTransformer implements Factory.
func (f OffsetModTime) NewTransformer() Transformer {
	return offsetModTime{offset: f.Offset}
}

type offsetModTime struct {
	offset time.Duration
}

func (t offsetModTime) Process(e Entry, _ io.Reader) (Result, error) {
	mod, ok := e.ModTime()
	if !ok {
		mod = time.Unix(0, 0).UTC()
	}
	return Pass(e.WithModTime(mod.Add(t.offset))), nil
}

// StoreAll writes every file entry without compression.
type StoreAll struct{}

// NewTransformer implements Factory.
func (StoreAll) NewTransformer() Transformer { return storeAll{} }

type storeAll struct{}

func (storeAll) Process(e Entry, r io.Reader) (Result, error) {
	if r == nil {
		return Pass(e), nil
	}
	return Pass(e.AsStored()), nil
}
