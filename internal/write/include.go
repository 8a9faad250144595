package write

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/meigma/zipbuild/internal/pathutil"
	"github.com/meigma/zipbuild/internal/ziptype"
	"github.com/meigma/zipbuild/source"
)

// include expands an included archive in its central directory order.
func (w *writer) include(idx int, inc Include) error {
	ra, err := source.OpenReaderAt(w.ctx, inc.Source)
	if err != nil {
		return sourceErr(fmt.Sprintf("include %d", idx), err)
	}
	defer ra.Close()

	zr, err := zip.NewReader(ra, ra.Size())
	// Non-local names are reported by mapping validation instead.
	if err != nil && (zr == nil || !errors.Is(err, zip.ErrInsecurePath)) {
		return fmt.Errorf("read include %d: %w", idx, err)
	}
	registerDecompressors(zr)

	w.log.Debug("expanding include",
		slog.Int("index", idx),
		slog.String("mapping", inc.Mapping.String()),
		slog.Int("entries", len(zr.File)))

	for _, f := range zr.File {
		if err := w.includeEntry(inc, f); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) includeEntry(inc Include, f *zip.File) error {
	name, dir := pathutil.TrimDir(f.Name)
	if clean, ok := pathutil.Clean(name); ok {
		name = clean
	}
	if name == "" {
		return nil
	}
	src := ziptype.NewEntry(name).
		WithMethod(ziptype.MethodCode(f.Method), ziptype.DefaultLevel).
		WithModTime(f.Modified)

	dests := inc.Mapping.Map(src, dir)
	for _, d := range dests {
		if !pathutil.IsForwardRelative(d.Path()) {
			return fmt.Errorf("%w: %q mapped to %q by %s",
				ziptype.ErrInvalidMappingResult, f.Name, d.Path(), inc.Mapping)
		}
	}
	if len(dests) == 0 {
		return nil
	}

	if dir {
		for _, d := range dests {
			if err := w.submit(d, true, content{}); err != nil {
				return err
			}
		}
		return nil
	}

	dests = fileDestinations(dests)
	known := content{known: true, crc: f.CRC32, size: f.UncompressedSize64}

	if len(dests) == 1 {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s in include: %w", f.Name, err)
		}
		defer rc.Close()
		known.r = rc
		return w.submit(dests[0], false, known)
	}

	// The entry stream can be read once, so several destinations share
	// one buffered copy.
	data, err := readEntry(f)
	if err != nil {
		return err
	}
	for _, d := range dests {
		known.r = bytes.NewReader(data)
		if err := w.submit(d, false, known); err != nil {
			return err
		}
	}
	return nil
}

// fileDestinations orders destinations by path and keeps the first entry
// for each path.
func fileDestinations(dests []ziptype.Entry) []ziptype.Entry {
	if len(dests) < 2 {
		return dests
	}
	sorted := slices.Clone(dests)
	slices.SortStableFunc(sorted, func(a, b ziptype.Entry) int {
		return strings.Compare(a.Path(), b.Path())
	})
	return slices.CompactFunc(sorted, func(a, b ziptype.Entry) bool {
		return a.Path() == b.Path()
	})
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s in include: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s in include: %w", f.Name, err)
	}
	return data, nil
}
