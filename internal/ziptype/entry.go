// Package ziptype defines shared types used across the zipbuild package and
// its internal packages. This avoids circular imports between zipbuild,
// mapping, transform and internal/write.
package ziptype

import (
	"fmt"
	"time"
)

// EpochModTime is written for entries without a modification time, so
// that output does not depend on when the archive was built.
var EpochModTime = time.Unix(0, 0).UTC()

// Entry describes the logical attributes of a single archive entry.
//
// Entry is an immutable value. The With* and As* methods return modified
// copies. Two entries are equal (==) when path, modification time, method
// and level are all equal, which makes Entry usable as a map key.
type Entry struct {
	path     string
	modNanos int64
	hasMod   bool
	method   Method
	level    int
}

// NewEntry returns an entry with no explicit modification time and the
// default compression method.
func NewEntry(path string) Entry {
	return Entry{path: path, level: DefaultLevel}
}

// NewEntryAt returns an entry with an explicit modification time.
func NewEntryAt(path string, modTime time.Time) Entry {
	return NewEntry(path).WithModTime(modTime)
}

// StoredEntry returns an entry that is written without compression.
func StoredEntry(path string) Entry {
	return NewEntry(path).AsStored()
}

// DeflatedEntry returns an entry that is deflated at the given level.
func DeflatedEntry(path string, level int) Entry {
	return NewEntry(path).AsDeflated(level)
}

// Path returns the forward-relative entry path.
func (e Entry) Path() string {
	return e.path
}

// ModTimeOrEpoch returns the modification time, or EpochModTime if unset.
func (e Entry) ModTimeOrEpoch() time.Time {
	if t, ok := e.ModTime(); ok {
		return t
	}
	return EpochModTime
}

// ModTime returns the modification time and whether it was set.
func (e Entry) ModTime() (time.Time, bool) {
	if !e.hasMod {
		return time.Time{}, false
	}
	return time.Unix(0, e.modNanos).UTC(), true
}

// Method returns the compression method.
func (e Entry) Method() Method {
	return e.method
}

// Level returns the compression level. DefaultLevel means codec default.
func (e Entry) Level() int {
	return e.level
}

// WithPath returns a copy of e with a different path.
func (e Entry) WithPath(path string) Entry {
	e.path = path
	return e
}

// WithModTime returns a copy of e with the given modification time.
// A zero time clears the modification time.
func (e Entry) WithModTime(t time.Time) Entry {
	if t.IsZero() {
		e.modNanos, e.hasMod = 0, false
		return e
	}
	e.modNanos, e.hasMod = t.UnixNano(), true
	return e
}

// WithoutModTime returns a copy of e that defers to the archive default
// modification time.
func (e Entry) WithoutModTime() Entry {
	e.modNanos, e.hasMod = 0, false
	return e
}

// WithMethod returns a copy of e using method m at the given level.
func (e Entry) WithMethod(m Method, level int) Entry {
	e.method = m
	e.level = NormalizeLevel(level)
	return e
}

// AsStored returns a copy of e that is written without compression.
func (e Entry) AsStored() Entry {
	return e.WithMethod(MethodStored, DefaultLevel)
}

// AsDeflated returns a copy of e that is deflated at the given level.
func (e Entry) AsDeflated(level int) Entry {
	return e.WithMethod(MethodDeflated, level)
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	mod := "default"
	if t, ok := e.ModTime(); ok {
		mod = t.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%s (modified=%s method=%s level=%d)", e.path, mod, e.method, e.level)
}
