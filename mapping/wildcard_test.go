package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipbuild/internal/ziptype"
)

func TestPatternMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.txt", "readme.txt", true},
		{"*.txt", "docs/readme.txt", false},
		{"*.md", "readme.txt", false},
		{"docs/*", "docs/a", true},
		{"docs/*", "docs/a/b", false},
		{"**/*.txt", "a.txt", true},
		{"**/*.txt", "x/y/a.txt", true},
		{"**", "anything/at/all", true},
		{"a/**", "a", true},
		{"a/**", "a/b/c", true},
		{"a/**/c", "a/c", true},
		{"a/**/c", "a/b/b/c", true},
		{"a/**/c", "a/b/d", false},
		{"a/**/**/c", "a/c", true},
		{"?.go", "x.go", true},
		{"[ab].go", "c.go", false},
		{"*.TXT", "readme.txt", false},
	}
	for _, tt := range tests {
		p, err := CompilePattern(tt.pattern)
		require.NoError(t, err, tt.pattern)
		assert.Equal(t, tt.want, p.Match(tt.name), "%q ~ %q", tt.pattern, tt.name)
	}
}

func TestCompilePatternInvalid(t *testing.T) {
	t.Parallel()

	for _, pattern := range []string{"", "a//b", "[", "a/[z-/b"} {
		_, err := CompilePattern(pattern)
		assert.ErrorIs(t, err, ziptype.ErrInvalidPattern, "pattern %q", pattern)
	}
}

func TestMustCompilePatternPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustCompilePattern("[") })
	assert.Equal(t, "**/*.go", MustCompilePattern("**/*.go").String())
}
