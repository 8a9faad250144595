package transform

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/magiconair/properties"

	"github.com/meigma/zipbuild/internal/ziptype"
	"github.com/meigma/zipbuild/mapping"
)

// PropertyAdder sets Name to Value in every properties file matching Pattern.
// A file that already assigns Value to Name is passed on unchanged. Other
// matching files are consumed and rewritten with the assignment; the rewrite
// re-enters the pipeline from the first transformer.
type PropertyAdder struct {
	Pattern string
	Name    string
	Value   string
}

// NewTransformer implements Factory.
func (f PropertyAdder) NewTransformer() Transformer {
	p, err := mapping.CompilePattern(f.Pattern)
	return &propertyAdder{cfg: f, pattern: p, err: err}
}

type propertyAdder struct {
	cfg     PropertyAdder
	pattern mapping.Pattern
	err     error
}

func (t *propertyAdder) Process(e Entry, r io.Reader) (Result, error) {
	if t.err != nil {
		return Result{}, t.err
	}
	if r == nil || !t.pattern.Match(e.Path()) {
		return Pass(e), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", e.Path(), err)
	}
	props, err := loadProperties(data)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", e.Path(), err)
	}
	if v, ok := props.Get(t.cfg.Name); ok && v == t.cfg.Value {
		return Pass(e), nil
	}

	out := setProperty(props, t.cfg.Name, t.cfg.Value)
	// The rewrite is offered to this transformer again and must pass.
	check, err := loadProperties(out)
	if err != nil {
		return Result{}, fmt.Errorf("rewrite %s: %w", e.Path(), err)
	}
	if v, _ := check.Get(t.cfg.Name); v != t.cfg.Value {
		return Result{}, fmt.Errorf("rewrite %s: property %q does not read back as %q", e.Path(), t.cfg.Name, t.cfg.Value)
	}
	return Consume(File(e, out)), nil
}

func loadProperties(data []byte) (*properties.Properties, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	return l.LoadBytes(data)
}

// setProperty renders props in key order of first appearance with name
// assigned value. An existing assignment is replaced in place.
func setProperty(props *properties.Properties, name, value string) []byte {
	var buf bytes.Buffer
	found := false
	for _, k := range props.Keys() {
		v, _ := props.Get(k)
		if k == name {
			v, found = value, true
		}
		writeProperty(&buf, k, v)
	}
	if !found {
		writeProperty(&buf, name, value)
	}
	return buf.Bytes()
}

func writeProperty(buf *bytes.Buffer, key, value string) {
	buf.WriteString(escapeProperty(key, true))
	buf.WriteByte('=')
	buf.WriteString(escapeProperty(value, false))
	buf.WriteByte('\n')
}

// escapeProperty escapes s for a properties file. Keys also escape the
// separators and comment markers.
func escapeProperty(s string, key bool) string {
	var b strings.Builder
	for i, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\f':
			b.WriteString(`\f`)
		case '=', ':', '#', '!':
			if key {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		case ' ':
			if key || i == 0 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Merge consumes every file matching Pattern and writes their concatenated
// contents as a single file at Target when the pipeline ends. Nothing is
// written if no file matched.
type Merge struct {
	Pattern string
	Target  string
}

// NewTransformer implements Factory.
func (f Merge) NewTransformer() Transformer {
	p, err := mapping.CompilePattern(f.Pattern)
	return &merge{target: f.Target, pattern: p, err: err}
}

type merge struct {
	target  string
	pattern mapping.Pattern
	err     error

	buf     bytes.Buffer
	matched int
	latest  time.Time
}

func (t *merge) Process(e Entry, r io.Reader) (Result, error) {
	if t.err != nil {
		return Result{}, t.err
	}
	if r == nil || !t.pattern.Match(e.Path()) {
		return Pass(e), nil
	}
	if t.buf.Len() > 0 && t.buf.Bytes()[t.buf.Len()-1] != '\n' {
		t.buf.WriteByte('\n')
	}
	if _, err := t.buf.ReadFrom(r); err != nil {
		return Result{}, fmt.Errorf("read %s: %w", e.Path(), err)
	}
	t.matched++
	if mod, ok := e.ModTime(); ok && mod.After(t.latest) {
		t.latest = mod
	}
	return Consume(), nil
}

func (t *merge) End() ([]Pending, error) {
	if t.matched == 0 {
		return nil, nil
	}
	e := ziptype.NewEntry(t.target).WithModTime(t.latest)
	return []Pending{File(e, bytes.Clone(t.buf.Bytes()))}, nil
}
