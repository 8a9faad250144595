package zipbuild

import (
	"github.com/meigma/zipbuild/internal/ziptype"
)

// Re-export types from internal/ziptype for the public API.
type (
	// Entry describes the logical attributes of one archive entry.
	Entry = ziptype.Entry

	// Method identifies the compression method of an entry.
	Method = ziptype.Method
)

// Re-export entry constructors.
var (
	// NewEntry returns an entry with no explicit modification time and the
	// default compression method.
	NewEntry = ziptype.NewEntry

	// NewEntryAt returns an entry with an explicit modification time.
	NewEntryAt = ziptype.NewEntryAt

	// StoredEntry returns an entry written without compression.
	StoredEntry = ziptype.StoredEntry

	// DeflatedEntry returns an entry deflated at the given level.
	DeflatedEntry = ziptype.DeflatedEntry

	// MethodCode returns the method for a raw ZIP method code.
	MethodCode = ziptype.MethodCode
)

// Re-export methods.
var (
	MethodDefault  = ziptype.MethodDefault
	MethodStored   = ziptype.MethodStored
	MethodDeflated = ziptype.MethodDeflated
	MethodZstd     = ziptype.MethodZstd
)

// DefaultLevel asks the codec for its default compression level.
const DefaultLevel = ziptype.DefaultLevel

// EpochModTime is the modification time of entries that have none.
var EpochModTime = ziptype.EpochModTime
