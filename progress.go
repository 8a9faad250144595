package zipbuild

import "github.com/meigma/zipbuild/internal/ziptype"

// Re-export progress types.
type (
	// ProgressEvent represents a progress update while an archive is written.
	ProgressEvent = ziptype.ProgressEvent

	// ProgressStage identifies the current phase of an archive write.
	ProgressStage = ziptype.ProgressStage

	// ProgressFunc receives progress updates during archive writes.
	ProgressFunc = ziptype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageResources indicates directly added resources are being written.
	StageResources = ziptype.StageResources

	// StageIncludes indicates included archives are being expanded.
	StageIncludes = ziptype.StageIncludes

	// StageFinishing indicates transformers are being flushed and ended.
	StageFinishing = ziptype.StageFinishing
)
