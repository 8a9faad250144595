package ziptype

// ProgressEvent represents a progress update while an archive is written.
type ProgressEvent struct {
	// Stage identifies the current phase of the write.
	Stage ProgressStage

	// Path is the entry currently being written, if applicable.
	Path string

	// EntriesDone is the number of entries written so far.
	EntriesDone int

	// EntriesTotal is the number of directly added resources.
	// Entries expanded from includes or emitted by transformers are not
	// known in advance and are not counted.
	EntriesTotal int

	// BytesWritten is the number of archive bytes written so far.
	BytesWritten uint64
}

// ProgressStage identifies the current phase of an archive write.
type ProgressStage uint8

// Progress stages.
const (
	// StageResources indicates directly added resources are being written.
	StageResources ProgressStage = iota

	// StageIncludes indicates included archives are being expanded.
	StageIncludes

	// StageFinishing indicates transformers are being flushed and ended
	// and the central directory is written.
	StageFinishing
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageResources:
		return "resources"
	case StageIncludes:
		return "includes"
	case StageFinishing:
		return "finishing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during archive writes.
// Implementations must be safe for concurrent calls when an archive is
// written concurrently.
type ProgressFunc func(ProgressEvent)
