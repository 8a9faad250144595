package mapping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipbuild/internal/ziptype"
)

func paths(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path()
	}
	return out
}

func mustTarget(t *testing.T, dir string) Mapping {
	t.Helper()
	m, err := TargetDirectory(dir)
	require.NoError(t, err)
	return m
}

func mustWildcard(t *testing.T, pattern string) Mapping {
	t.Helper()
	m, err := Wildcard(pattern)
	require.NoError(t, err)
	return m
}

func TestIdentityAndExclude(t *testing.T) {
	t.Parallel()

	e := ziptype.NewEntryAt("a/b.txt", time.Unix(100, 0))
	assert.Equal(t, []Entry{e}, Identity().Map(e, false))
	assert.Empty(t, Exclude().Map(e, false))
	assert.Empty(t, Exclude().Map(ziptype.NewEntry("a"), true))
}

func TestTargetDirectory(t *testing.T) {
	t.Parallel()

	m := mustTarget(t, "lib/")
	got := m.Map(ziptype.NewEntry("x.txt"), false)
	assert.Equal(t, []string{"lib/x.txt"}, paths(got))

	for _, dir := range []string{"", "/abs", "../up", "a/../../b", "C:/x"} {
		_, err := TargetDirectory(dir)
		assert.ErrorIs(t, err, ziptype.ErrInvalidPath, "dir %q", dir)
	}
}

func TestTargetDirectoryKeepsAttributes(t *testing.T) {
	t.Parallel()

	mod := time.Unix(1_700_000_000, 0)
	e := ziptype.DeflatedEntry("x.txt", 3).WithModTime(mod)
	got := mustTarget(t, "out").Map(e, false)
	require.Len(t, got, 1)

	gotMod, ok := got[0].ModTime()
	require.True(t, ok)
	assert.True(t, mod.Equal(gotMod))
	assert.Equal(t, ziptype.MethodDeflated, got[0].Method())
	assert.Equal(t, 3, got[0].Level())
}

func TestChain(t *testing.T) {
	t.Parallel()

	m := Chain(mustTarget(t, "a"), mustTarget(t, "b"))
	assert.Equal(t, []string{"b/a/x.txt"}, paths(m.Map(ziptype.NewEntry("x.txt"), false)))

	filtered := Chain(mustWildcard(t, "*.md"), mustTarget(t, "docs"))
	assert.Empty(t, filtered.Map(ziptype.NewEntry("x.txt"), false))
	assert.Equal(t, []string{"docs/r.md"}, paths(filtered.Map(ziptype.NewEntry("r.md"), false)))
}

func TestChainNil(t *testing.T) {
	t.Parallel()

	target := mustTarget(t, "a")
	assert.True(t, Equal(target, Chain(nil, target)))
	assert.True(t, Equal(target, Chain(target, nil)))
	assert.Nil(t, Chain(nil, nil))
}

func TestChainFanOut(t *testing.T) {
	t.Parallel()

	fan := Multi(Identity(), mustTarget(t, "copy"))
	m := Chain(fan, Multi(Identity(), Identity()))
	assert.Equal(t, []string{"x", "copy/x"}, paths(m.Map(ziptype.NewEntry("x"), false)))
}

func TestMulti(t *testing.T) {
	t.Parallel()

	m := Multi(mustWildcard(t, "*.txt"), mustTarget(t, "copy"))
	got := m.Map(ziptype.NewEntry("readme.txt"), false)
	assert.ElementsMatch(t, []string{"readme.txt", "copy/readme.txt"}, paths(got))

	got = m.Map(ziptype.NewEntry("image.png"), false)
	assert.Equal(t, []string{"copy/image.png"}, paths(got))
}

func TestMultiDeduplicates(t *testing.T) {
	t.Parallel()

	m := Multi(Identity(), Identity(), mustWildcard(t, "**"))
	got := m.Map(ziptype.NewEntry("a/b"), false)
	assert.Equal(t, []string{"a/b"}, paths(got))
}

func TestMultiEmptyIsExclude(t *testing.T) {
	t.Parallel()

	assert.True(t, Equal(Exclude(), Multi()))
	assert.True(t, Equal(Exclude(), Multi(nil, nil)))
	assert.Empty(t, Multi().Map(ziptype.NewEntry("a"), false))
}

func TestWildcardMapping(t *testing.T) {
	t.Parallel()

	m := mustWildcard(t, "*.md")
	assert.Empty(t, m.Map(ziptype.NewEntry("readme.txt"), false))
	assert.Equal(t, []string{"readme.md"}, paths(m.Map(ziptype.NewEntry("readme.md"), false)))

	dirs := mustWildcard(t, "included/**/*")
	assert.Equal(t, []string{"included/sub"}, paths(dirs.Map(ziptype.NewEntry("included/sub"), true)))
	assert.Empty(t, dirs.Map(ziptype.NewEntry("included"), true))
}

func TestCompressionOverrides(t *testing.T) {
	t.Parallel()

	e := ziptype.NewEntry("a.bin")

	stored := Stored().Map(e, false)
	require.Len(t, stored, 1)
	assert.Equal(t, ziptype.MethodStored, stored[0].Method())

	deflated := Deflated(9).Map(e, false)
	require.Len(t, deflated, 1)
	assert.Equal(t, ziptype.MethodDeflated, deflated[0].Method())
	assert.Equal(t, 9, deflated[0].Level())

	assert.Equal(t, -1, Deflated(-7).Map(e, false)[0].Level())

	zstd := Method(ziptype.CodeZstd, 3).Map(e, false)
	require.Len(t, zstd, 1)
	assert.Equal(t, ziptype.MethodZstd, zstd[0].Method())
}

func TestEqual(t *testing.T) {
	t.Parallel()

	a := Chain(mustTarget(t, "x"), Multi(mustWildcard(t, "*.txt"), Stored()))
	b := Chain(mustTarget(t, "x"), Multi(mustWildcard(t, "*.txt"), Stored()))
	assert.True(t, Equal(a, b))
	assert.Equal(t, Key(a), Key(b))

	assert.False(t, Equal(mustTarget(t, "x"), mustTarget(t, "y")))
	assert.False(t, Equal(Identity(), Exclude()))
	assert.False(t, Equal(Deflated(0), Deflated(1)))
	assert.False(t, Equal(Deflated(0), Stored()))
	assert.False(t, Equal(Multi(Identity(), Stored()), Multi(Stored(), Identity())))
	assert.False(t, Equal(Chain(Identity(), Stored()), Multi(Identity(), Stored())))
}

func TestString(t *testing.T) {
	t.Parallel()

	m := Chain(mustTarget(t, "lib"), Multi(mustWildcard(t, "*.txt"), Stored()))
	assert.Equal(t, "chain(target-directory(lib), multi(wildcard(*.txt), compression(stored, -1)))", m.String())
}
