package zipbuild

import "github.com/meigma/zipbuild/internal/ziptype"

// Errors re-exported from internal/ziptype.
var (
	// ErrInvalidPath is returned when an entry path is empty, absolute, or
	// escapes the archive root.
	ErrInvalidPath = ziptype.ErrInvalidPath

	// ErrDuplicatePath is returned when two entries resolve to the same
	// output path, compared case-insensitively.
	ErrDuplicatePath = ziptype.ErrDuplicatePath

	// ErrDuplicateInclude is returned when the same source is included twice.
	// Merge the mappings with mapping.Multi and include the source once.
	ErrDuplicateInclude = ziptype.ErrDuplicateInclude

	// ErrInvalidMappingResult is returned when a mapping produces an
	// invalid destination path.
	ErrInvalidMappingResult = ziptype.ErrInvalidMappingResult

	// ErrSourceNotFound is returned when a resource or include cannot be opened.
	ErrSourceNotFound = ziptype.ErrSourceNotFound

	// ErrTransformer wraps errors returned by transformers.
	ErrTransformer = ziptype.ErrTransformer

	// ErrNullTransformer is returned when a transformer factory returns nil.
	ErrNullTransformer = ziptype.ErrNullTransformer

	// ErrInvalidPattern is returned for malformed wildcard patterns.
	ErrInvalidPattern = ziptype.ErrInvalidPattern

	// ErrBuilderConsumed is returned when a builder is used after Build.
	ErrBuilderConsumed = ziptype.ErrBuilderConsumed

	// ErrNonComparableSource is returned when an include source cannot be
	// compared by identity.
	ErrNonComparableSource = ziptype.ErrNonComparableSource
)
