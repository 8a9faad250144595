package mapping

import (
	"fmt"
	"path"
	"strings"

	"github.com/meigma/zipbuild/internal/ziptype"
)

// Pattern is a compiled wildcard over slash-separated entry paths.
//
// Within a segment, "*", "?" and character classes follow path.Match and
// never cross a "/". A segment consisting only of "**" matches zero or more
// whole segments, so "**/*.txt" matches both "a.txt" and "x/y/a.txt".
type Pattern struct {
	raw  string
	segs []string
}

// CompilePattern parses a wildcard pattern.
func CompilePattern(pattern string) (Pattern, error) {
	if pattern == "" {
		return Pattern{}, fmt.Errorf("%w: empty pattern", ziptype.ErrInvalidPattern)
	}
	segs := strings.Split(strings.Trim(pattern, "/"), "/")
	compact := segs[:0]
	for _, seg := range segs {
		if seg == "" {
			return Pattern{}, fmt.Errorf("%w: empty segment in %q", ziptype.ErrInvalidPattern, pattern)
		}
		if seg == "**" {
			// Consecutive ** segments are equivalent to one.
			if n := len(compact); n > 0 && compact[n-1] == "**" {
				continue
			}
		} else if _, err := path.Match(seg, ""); err != nil {
			return Pattern{}, fmt.Errorf("%w: %q: %w", ziptype.ErrInvalidPattern, pattern, err)
		}
		compact = append(compact, seg)
	}
	return Pattern{raw: pattern, segs: compact}, nil
}

// MustCompilePattern is like CompilePattern but panics on error.
func MustCompilePattern(pattern string) Pattern {
	p, err := CompilePattern(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether name matches the pattern.
func (p Pattern) Match(name string) bool {
	if len(p.segs) == 0 {
		return false
	}
	return matchSegments(p.segs, strings.Split(name, "/"))
}

// String returns the source pattern.
func (p Pattern) String() string {
	return p.raw
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], name[0])
		if err != nil || !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}
