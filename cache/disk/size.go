package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// cacheEntry is one stored archive: its content and record files.
type cacheEntry struct {
	base    string
	size    int64
	modTime time.Time
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	return total, err
}

// pruneDir removes stored archives, oldest record first, until the regular
// files under root total at most targetBytes. Files that belong to no
// archive, such as in-flight temporary files, count toward the total but
// are never removed.
func pruneDir(root string, targetBytes int64) (freed int64, remaining int64, err error) {
	if targetBytes < 0 {
		targetBytes = 0
	}

	byBase := make(map[string]*cacheEntry)
	var total int64

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size := info.Size()
		total += size

		ext := filepath.Ext(path)
		if ext != archiveExt && ext != recordExt {
			return nil
		}
		base := strings.TrimSuffix(path, ext)
		e, ok := byBase[base]
		if !ok {
			e = &cacheEntry{base: base}
			byBase[base] = e
		}
		e.size += size
		if ext == recordExt || e.modTime.IsZero() {
			e.modTime = info.ModTime()
		}
		return nil
	})
	if errors.Is(walkErr, os.ErrNotExist) {
		return 0, 0, nil
	}
	if walkErr != nil {
		return 0, 0, walkErr
	}

	remaining = total
	if remaining <= targetBytes {
		return 0, remaining, nil
	}

	entries := make([]*cacheEntry, 0, len(byBase))
	for _, e := range byBase {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].base < entries[j].base
		}
		return entries[i].modTime.Before(entries[j].modTime)
	})

	for _, entry := range entries {
		if remaining <= targetBytes {
			break
		}
		// The record goes first so a half-removed entry reads as a miss.
		for _, ext := range []string{recordExt, archiveExt} {
			if err := os.Remove(entry.base + ext); err != nil && !errors.Is(err, os.ErrNotExist) {
				return freed, remaining, err
			}
		}
		remaining -= entry.size
		freed += entry.size
	}

	return freed, remaining, nil
}
