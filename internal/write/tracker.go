package write

import (
	"fmt"

	"github.com/meigma/zipbuild/internal/pathutil"
	"github.com/meigma/zipbuild/internal/ziptype"
)

// tracker records written paths case-insensitively.
type tracker struct {
	folder *pathutil.Folder
	dirs   map[string]bool
	// strict rejects repeated directories instead of skipping them.
	strict bool
}

func newTracker() *tracker {
	return &tracker{folder: pathutil.NewFolder(), dirs: make(map[string]bool)}
}

// add registers path. Unless strict is set, a directory repeating an
// earlier directory is reported as skip; every other collision is an error.
func (t *tracker) add(path string, dir bool) (skip bool, err error) {
	key := t.folder.Key(path)
	wasDir, ok := t.dirs[key]
	if !ok {
		t.dirs[key] = dir
		return false, nil
	}
	switch {
	case dir && wasDir && !t.strict:
		return true, nil
	case dir && wasDir:
		return false, fmt.Errorf("%w: directory %q", ziptype.ErrDuplicatePath, path)
	case dir:
		return false, fmt.Errorf("%w: directory %q collides with a file", ziptype.ErrDuplicatePath, path)
	case wasDir:
		return false, fmt.Errorf("%w: file %q collides with a directory", ziptype.ErrDuplicatePath, path)
	default:
		return false, fmt.Errorf("%w: %q", ziptype.ErrDuplicatePath, path)
	}
}
