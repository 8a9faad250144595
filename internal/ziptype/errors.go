package ziptype

import "errors"

// Sentinel errors for archive creation.
var (
	// ErrInvalidPath is returned when an entry path is empty, absolute, or
	// escapes the archive root.
	ErrInvalidPath = errors.New("zipbuild: invalid entry path")

	// ErrDuplicatePath is returned when two entries resolve to the same
	// output path, compared case-insensitively.
	ErrDuplicatePath = errors.New("zipbuild: duplicate entry path")

	// ErrDuplicateInclude is returned when the same archive source is
	// included more than once.
	ErrDuplicateInclude = errors.New("zipbuild: duplicate include")

	// ErrInvalidMappingResult is returned when a path mapping produces an
	// empty or non forward-relative destination.
	ErrInvalidMappingResult = errors.New("zipbuild: invalid mapping result")

	// ErrSourceNotFound is returned when a resource or include archive
	// cannot be opened.
	ErrSourceNotFound = errors.New("zipbuild: source not found")

	// ErrTransformer wraps errors raised by a transformer.
	ErrTransformer = errors.New("zipbuild: transformer failed")

	// ErrNullTransformer is returned when a transformer factory returns nil.
	ErrNullTransformer = errors.New("zipbuild: transformer factory returned nil")

	// ErrInvalidPattern is returned for malformed wildcard patterns.
	ErrInvalidPattern = errors.New("zipbuild: invalid wildcard pattern")

	// ErrBuilderConsumed is returned when a builder is used after Build.
	ErrBuilderConsumed = errors.New("zipbuild: builder already built")

	// ErrNonComparableSource is returned when an include source cannot be
	// compared for identity.
	ErrNonComparableSource = errors.New("zipbuild: include source is not comparable")
)
