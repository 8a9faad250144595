// Package mapping implements the rules that re-export entries of an included
// archive under new paths.
//
// A Mapping is a pure function from one source entry to zero, one, or many
// destination entries. Mappings compose with Chain and Multi, and every
// mapping has a structural identity (see Key and Equal) so that it can take
// part in an archive fingerprint.
//
// The set of mappings is closed: Identity, Exclude, TargetDirectory,
// Wildcard, Chain, Multi and the compression overrides.
package mapping

import (
	"fmt"
	"strings"

	"github.com/meigma/zipbuild/internal/pathutil"
	"github.com/meigma/zipbuild/internal/ziptype"
)

// Entry is the archive entry type mappings operate on.
type Entry = ziptype.Entry

// Mapping maps a source archive entry to its destination entries.
type Mapping interface {
	// Map returns the destination entries for e. The result holds no
	// duplicate entries; an empty result drops e.
	Map(e Entry, dir bool) []Entry

	fmt.Stringer
	node() node
}

// Identity returns the mapping that re-exports entries unchanged.
func Identity() Mapping {
	return identity{}
}

// Exclude returns the mapping that drops every entry.
func Exclude() Mapping {
	return exclude{}
}

// TargetDirectory returns a mapping that places entries under dir.
// dir must be forward-relative.
func TargetDirectory(dir string) (Mapping, error) {
	clean, ok := pathutil.Clean(dir)
	if !ok {
		return nil, fmt.Errorf("%w: target directory %q", ziptype.ErrInvalidPath, dir)
	}
	return targetDirectory{dir: clean}, nil
}

// Wildcard returns a mapping that keeps entries whose path matches pattern
// and drops the others.
func Wildcard(pattern string) (Mapping, error) {
	p, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return wildcard{pattern: p}, nil
}

// Chain applies first, then applies second to each result of first.
// A nil argument yields the other mapping.
func Chain(first, second Mapping) Mapping {
	if first == nil {
		return second
	}
	if second == nil {
		return first
	}
	return chain{first: first, second: second}
}

// Multi applies every mapping to the same entry and returns the union of
// the results. Multi without mappings is Exclude.
func Multi(mappings ...Mapping) Mapping {
	members := make([]Mapping, 0, len(mappings))
	for _, m := range mappings {
		if m != nil {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		return exclude{}
	}
	return multi{mappings: members}
}

// Stored returns a mapping that rewrites entries to be stored uncompressed.
func Stored() Mapping {
	return compression{method: ziptype.MethodStored, level: ziptype.DefaultLevel}
}

// Deflated returns a mapping that rewrites entries to be deflated at level.
// Levels below -1 are normalized to -1.
func Deflated(level int) Mapping {
	return compression{method: ziptype.MethodDeflated, level: ziptype.NormalizeLevel(level)}
}

// Method returns a mapping that rewrites entries to the given ZIP method
// code and level.
func Method(code uint16, level int) Mapping {
	return compression{method: ziptype.MethodCode(code), level: ziptype.NormalizeLevel(level)}
}

type identity struct{}

func (identity) Map(e Entry, _ bool) []Entry { return []Entry{e} }
func (identity) String() string             { return "identity" }
func (identity) node() node                 { return node{Kind: kindIdentity} }

type exclude struct{}

func (exclude) Map(Entry, bool) []Entry { return nil }
func (exclude) String() string          { return "exclude" }
func (exclude) node() node              { return node{Kind: kindExclude} }

type targetDirectory struct {
	dir string
}

func (m targetDirectory) Map(e Entry, _ bool) []Entry {
	return []Entry{e.WithPath(pathutil.Join(m.dir, e.Path()))}
}

func (m targetDirectory) String() string { return "target-directory(" + m.dir + ")" }
func (m targetDirectory) node() node     { return node{Kind: kindTargetDirectory, Arg: m.dir} }

type wildcard struct {
	pattern Pattern
}

func (m wildcard) Map(e Entry, _ bool) []Entry {
	if !m.pattern.Match(e.Path()) {
		return nil
	}
	return []Entry{e}
}

func (m wildcard) String() string { return "wildcard(" + m.pattern.String() + ")" }
func (m wildcard) node() node     { return node{Kind: kindWildcard, Arg: m.pattern.String()} }

type chain struct {
	first, second Mapping
}

func (m chain) Map(e Entry, dir bool) []Entry {
	firsts := m.first.Map(e, dir)
	switch len(firsts) {
	case 0:
		return nil
	case 1:
		return m.second.Map(firsts[0], dir)
	}
	var out []Entry
	for _, f := range firsts {
		out = union(out, m.second.Map(f, dir))
	}
	return out
}

func (m chain) String() string {
	return "chain(" + m.first.String() + ", " + m.second.String() + ")"
}

func (m chain) node() node {
	return node{Kind: kindChain, Children: []node{m.first.node(), m.second.node()}}
}

type multi struct {
	mappings []Mapping
}

func (m multi) Map(e Entry, dir bool) []Entry {
	var out []Entry
	for _, member := range m.mappings {
		out = union(out, member.Map(e, dir))
	}
	return out
}

func (m multi) String() string {
	parts := make([]string, len(m.mappings))
	for i, member := range m.mappings {
		parts[i] = member.String()
	}
	return "multi(" + strings.Join(parts, ", ") + ")"
}

func (m multi) node() node {
	children := make([]node, len(m.mappings))
	for i, member := range m.mappings {
		children[i] = member.node()
	}
	return node{Kind: kindMulti, Children: children}
}

type compression struct {
	method ziptype.Method
	level  int
}

func (m compression) Map(e Entry, _ bool) []Entry {
	if e.Method() == m.method && e.Level() == m.level {
		return []Entry{e}
	}
	return []Entry{e.WithMethod(m.method, m.level)}
}

func (m compression) String() string {
	return fmt.Sprintf("compression(%s, %d)", m.method, m.level)
}

func (m compression) node() node {
	code, _ := m.method.Code()
	return node{Kind: kindCompression, Code: code, Level: m.level}
}

// union appends the entries of add that are not already in dst.
func union(dst, add []Entry) []Entry {
next:
	for _, e := range add {
		for _, have := range dst {
			if have == e {
				continue next
			}
		}
		dst = append(dst, e)
	}
	return dst
}
