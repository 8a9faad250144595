package zipbuild

import (
	"archive/zip"
	"bytes"
	"context"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipbuild/internal/testutil"
	"github.com/meigma/zipbuild/mapping"
	"github.com/meigma/zipbuild/source"
	"github.com/meigma/zipbuild/transform"
)

// zipOf builds an archive of name/data pairs.
func zipOf(t *testing.T, pairs ...string) []byte {
	t.Helper()
	entries := make([]testutil.ZipEntry, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		entries = append(entries, testutil.ZipEntry{Name: pairs[i], Data: pairs[i+1], Method: zip.Deflate})
	}
	return testutil.BuildZip(t, entries...)
}

func writeBytes(t *testing.T, a *Archive) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, a.Write(context.Background(), &buf))
	return buf.Bytes()
}

func TestArchiveTwoResources(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.AddFile("b.txt", source.FromString("beta")))
	require.NoError(t, b.AddFile("a.txt", source.FromString("alpha")))
	archive, err := b.Build("out.zip")
	require.NoError(t, err)
	assert.Equal(t, "out.zip", archive.Name())

	files := testutil.ReadZip(t, writeBytes(t, archive))
	require.Len(t, files, 2)
	assert.Equal(t, []string{"a.txt", "b.txt"}, testutil.Names(files))
	assert.Equal(t, "alpha", files[0].Data)
	assert.Equal(t, "beta", files[1].Data)
	for _, f := range files {
		assert.Equal(t, zip.Deflate, f.Method)
		assert.True(t, f.Modified.Equal(time.Unix(0, 0)), "%s modified %v", f.Name, f.Modified)
	}
}

func TestArchiveIdempotent(t *testing.T) {
	t.Parallel()

	include := zipOf(t, "lib/x.class", "x", "lib/y.class", "y")
	build := func() *Archive {
		b := NewBuilder()
		require.NoError(t, b.AddFile("a.txt", source.FromString("alpha")))
		require.NoError(t, b.AddDirectory("META-INF"))
		require.NoError(t, b.AddResource(StoredEntry("s.bin"), source.FromString("stored")))
		target, err := mapping.TargetDirectory("vendor")
		require.NoError(t, err)
		require.NoError(t, b.AddInclude(source.FromBytes(include), target))
		require.NoError(t, b.AddTransformer(transform.OffsetModTime{Offset: time.Hour}))
		archive, err := b.Build("x.zip")
		require.NoError(t, err)
		return archive
	}

	first, second := build(), build()
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	assert.Equal(t, first.Fingerprint().Digest(), second.Fingerprint().Digest())
	assert.Equal(t, writeBytes(t, first), writeBytes(t, second))

	// Writing the same archive twice is also stable.
	assert.Equal(t, writeBytes(t, first), writeBytes(t, first))
}

func TestArchiveFingerprintSensitivity(t *testing.T) {
	t.Parallel()

	include := zipOf(t, "x.txt", "x")
	base := func(mod func(*Builder)) Fingerprint {
		b := NewBuilder()
		require.NoError(t, b.AddFile("a.txt", source.FromString("alpha")))
		require.NoError(t, b.AddInclude(source.FromBytes(include), nil))
		if mod != nil {
			mod(b)
		}
		archive, err := b.Build("x.zip")
		require.NoError(t, err)
		return archive.Fingerprint()
	}
	ref := base(nil)

	tests := []struct {
		name string
		mod  func(*Builder)
		diff func(a, b Fingerprint) bool
	}{
		{
			name: "content",
			mod: func(b *Builder) {
				b.resources[0].Source = source.FromString("ALPHA")
			},
			diff: func(a, b Fingerprint) bool { return a.Contents != b.Contents },
		},
		{
			name: "attributes",
			mod: func(b *Builder) {
				b.resources[0].Entry = b.resources[0].Entry.AsStored()
			},
			diff: func(a, b Fingerprint) bool { return a.Resources != b.Resources },
		},
		{
			name: "mapping",
			mod: func(b *Builder) {
				b.includes[0].Mapping = mapping.Stored()
			},
			diff: func(a, b Fingerprint) bool { return a.Includes != b.Includes },
		},
		{
			name: "transformer",
			mod: func(b *Builder) {
				require.NoError(t, b.AddTransformer(transform.MoveToDirectory{Dir: "x"}))
			},
			diff: func(a, b Fingerprint) bool { return a.Transformers != b.Transformers },
		},
		{
			name: "default mod time",
			mod: func(b *Builder) {
				require.NoError(t, b.SetDefaultModTime(time.Unix(100, 0)))
			},
			diff: func(a, b Fingerprint) bool { return a.DefaultModTime != b.DefaultModTime },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := base(tt.mod)
			assert.NotEqual(t, ref, got)
			assert.True(t, tt.diff(ref, got))
			assert.NotEqual(t, ref.Digest(), got.Digest())
		})
	}
}

func TestArchiveFingerprintDistinguishesTransformerConfig(t *testing.T) {
	t.Parallel()

	fp := func(dir string) Fingerprint {
		b := NewBuilder()
		require.NoError(t, b.AddTransformer(transform.MoveToDirectory{Dir: dir}))
		archive, err := b.Build("x.zip")
		require.NoError(t, err)
		return archive.Fingerprint()
	}
	assert.Equal(t, fp("a"), fp("a"))
	assert.NotEqual(t, fp("a"), fp("b"))
}

func TestArchiveDefaultModTimeWithoutResources(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.SetDefaultModTime(time.Unix(100, 0)))
	archive, err := b.Build("x.zip")
	require.NoError(t, err)
	assert.Zero(t, archive.Fingerprint().DefaultModTime)

	empty, err := NewBuilder().Build("x.zip")
	require.NoError(t, err)
	assert.Equal(t, empty.Fingerprint(), archive.Fingerprint())
}

func TestArchiveStoredCRC(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.AddResource(StoredEntry("hello.txt"), source.FromString("hello")))
	archive, err := b.Build("x.zip")
	require.NoError(t, err)

	f := testutil.Find(t, testutil.ReadZip(t, writeBytes(t, archive)), "hello.txt")
	assert.Equal(t, zip.Store, f.Method)
	assert.Equal(t, crc32.ChecksumIEEE([]byte("hello")), f.CRC32)
	assert.EqualValues(t, 5, f.Size)
}

func TestArchiveInclude(t *testing.T) {
	t.Parallel()

	include := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "readme.txt", Data: "readme_2", Method: zip.Deflate},
		testutil.ZipEntry{Name: "dir/"},
	)
	target, err := mapping.TargetDirectory("included")
	require.NoError(t, err)

	b := NewBuilder()
	require.NoError(t, b.AddFile("readme.txt", source.FromString("readme_base")))
	require.NoError(t, b.AddInclude(source.FromBytes(include), target))
	archive, err := b.Build("x.zip")
	require.NoError(t, err)

	files := testutil.ReadZip(t, writeBytes(t, archive))
	assert.Equal(t, []string{"readme.txt", "included/readme.txt", "included/dir/"}, testutil.Names(files))
	assert.Equal(t, "readme_base", files[0].Data)
	assert.Equal(t, "readme_2", files[1].Data)
	assert.True(t, files[2].Dir)
}

func TestArchiveIncludeCollision(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.AddFile("readme.txt", source.FromString("base")))
	require.NoError(t, b.AddInclude(source.FromBytes(zipOf(t, "README.TXT", "other")), nil))
	archive, err := b.Build("x.zip")
	require.NoError(t, err)

	err = archive.Write(context.Background(), &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrDuplicatePath)
}

func TestArchiveMultiMapping(t *testing.T) {
	t.Parallel()

	txt, err := mapping.Wildcard("*.txt")
	require.NoError(t, err)
	copyDir, err := mapping.TargetDirectory("copy")
	require.NoError(t, err)
	md, err := mapping.Wildcard("*.md")
	require.NoError(t, err)

	b := NewBuilder()
	require.NoError(t, b.AddInclude(
		source.FromBytes(zipOf(t, "readme.txt", "r", "notes.md", "n")),
		mapping.Chain(md, mapping.Exclude()),
	))
	require.NoError(t, b.AddInclude(
		source.FromBytes(zipOf(t, "readme.txt", "r")),
		mapping.Multi(txt, copyDir),
	))
	archive, err := b.Build("x.zip")
	require.NoError(t, err)

	files := testutil.ReadZip(t, writeBytes(t, archive))
	assert.ElementsMatch(t, []string{"readme.txt", "copy/readme.txt"}, testutil.Names(files))
}

func TestArchiveTransformerConsumption(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.AddFile("META-INF/app.properties", source.FromString("a=1")))
	require.NoError(t, b.AddInclude(
		source.FromBytes(zipOf(t, "META-INF/app.properties", "b=2", "x.txt", "x")), nil))
	require.NoError(t, b.AddTransformer(transform.Merge{
		Pattern: "**/*.properties",
		Target:  "META-INF/app.properties",
	}))
	archive, err := b.Build("x.zip")
	require.NoError(t, err)

	files := testutil.ReadZip(t, writeBytes(t, archive))
	var count int
	for _, f := range files {
		if f.Name == "META-INF/app.properties" {
			count++
			assert.Equal(t, "a=1\nb=2", f.Data)
		}
	}
	assert.Equal(t, 1, count)
	testutil.Find(t, files, "x.txt")
}

func TestArchiveWriteFile(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.AddFile("a.txt", source.FromString("alpha")))
	archive, err := b.Build("x.zip")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "out.zip")
	require.NoError(t, archive.WriteFile(context.Background(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, writeBytes(t, archive), data)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".zipbuild-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestArchiveWriteFileFailureLeavesNothing(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.AddInclude(source.FromString("not a zip"), nil))
	archive, err := b.Build("x.zip")
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")
	require.Error(t, archive.WriteFile(context.Background(), path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArchiveWriteCanceled(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.AddFile("a.txt", source.FromString("alpha")))
	archive, err := b.Build("x.zip")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = archive.Write(ctx, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchiveConcurrentWrites(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.AddFile("a.txt", source.FromString("alpha")))
	require.NoError(t, b.AddInclude(source.FromBytes(zipOf(t, "x.txt", "x")), nil))
	require.NoError(t, b.AddTransformer(transform.StoreAll{}))
	archive, err := b.Build("x.zip")
	require.NoError(t, err)

	want := writeBytes(t, archive)
	var wg sync.WaitGroup
	results := make([][]byte, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			if err := archive.Write(context.Background(), &buf); err == nil {
				results[i] = buf.Bytes()
			}
		}()
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestArchiveProgress(t *testing.T) {
	t.Parallel()

	var events []ProgressEvent
	b := NewBuilder(WithProgress(func(ev ProgressEvent) {
		events = append(events, ev)
	}))
	require.NoError(t, b.AddFile("a.txt", source.FromString("alpha")))
	require.NoError(t, b.AddFile("b.txt", source.FromString("beta")))
	archive, err := b.Build("x.zip")
	require.NoError(t, err)
	writeBytes(t, archive)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, StageFinishing, last.Stage)
	assert.Equal(t, 2, last.EntriesDone)
	assert.Equal(t, 2, last.EntriesTotal)
	assert.Positive(t, last.BytesWritten)
}
