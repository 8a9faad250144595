package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meigma/zipbuild"
	"github.com/meigma/zipbuild/mapping"
	"github.com/meigma/zipbuild/source"
	"github.com/meigma/zipbuild/transform"
)

// fileConfig is the top level of an archive definition file.
type fileConfig struct {
	Archives []archiveConfig `yaml:"archives"`
}

type archiveConfig struct {
	Output           string              `yaml:"output"`
	ModificationTime *time.Time          `yaml:"modification_time,omitempty"`
	Resources        []resourceConfig    `yaml:"resources,omitempty"`
	Includes         []includeConfig     `yaml:"includes,omitempty"`
	Transformers     []transformerConfig `yaml:"transformers,omitempty"`
}

type resourceConfig struct {
	Path             string     `yaml:"path"`
	File             string     `yaml:"file,omitempty"`
	Directory        bool       `yaml:"directory,omitempty"`
	Compression      string     `yaml:"compression,omitempty"`
	Level            *int       `yaml:"level,omitempty"`
	ModificationTime *time.Time `yaml:"modification_time,omitempty"`
}

type includeConfig struct {
	Archive         string   `yaml:"archive"`
	TargetDirectory string   `yaml:"target_directory,omitempty"`
	Include         []string `yaml:"include,omitempty"`
	Compression     string   `yaml:"compression,omitempty"`
	Level           *int     `yaml:"level,omitempty"`
}

type transformerConfig struct {
	Kind    string        `yaml:"kind"`
	Dir     string        `yaml:"dir,omitempty"`
	Offset  time.Duration `yaml:"offset,omitempty"`
	Pattern string        `yaml:"pattern,omitempty"`
	Target  string        `yaml:"target,omitempty"`
	Name    string        `yaml:"name,omitempty"`
	Value   string        `yaml:"value,omitempty"`
}

// loadConfig reads and validates an archive definition file.
func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, err
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte) (*fileConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg fileConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Archives) == 0 {
		return nil, errors.New("no archives defined")
	}
	outputs := make(map[string]int, len(cfg.Archives))
	for i, a := range cfg.Archives {
		if a.Output == "" {
			return nil, fmt.Errorf("archive %d: output is required", i)
		}
		if prev, dup := outputs[a.Output]; dup {
			return nil, fmt.Errorf("archive %d: output %q already used by archive %d", i, a.Output, prev)
		}
		outputs[a.Output] = i
		for j, r := range a.Resources {
			if r.Path == "" {
				return nil, fmt.Errorf("archive %d resource %d: path is required", i, j)
			}
			if r.Directory == (r.File != "") {
				return nil, fmt.Errorf("archive %d resource %q: exactly one of file and directory is required", i, r.Path)
			}
		}
		for j, inc := range a.Includes {
			if inc.Archive == "" {
				return nil, fmt.Errorf("archive %d include %d: archive is required", i, j)
			}
		}
	}
	return &cfg, nil
}

// resolver turns locations in a definition file into sources. Relative
// local paths are taken relative to base.
type resolver struct {
	base string
	opts []source.Option
}

func (r resolver) resolve(ctx context.Context, s string) (source.Source, error) {
	loc, err := source.ParseLocation(s)
	if err != nil {
		return nil, err
	}
	if loc.Kind == source.KindLocal && !filepath.IsAbs(loc.Path) {
		loc.Path = filepath.Join(r.base, loc.Path)
	}
	return source.Resolve(ctx, loc, r.opts...)
}

// build turns an archive definition into a frozen archive.
func (a archiveConfig) build(ctx context.Context, res resolver, opts ...zipbuild.Option) (*zipbuild.Archive, error) {
	b := zipbuild.NewBuilder(opts...)
	if a.ModificationTime != nil {
		if err := b.SetDefaultModTime(*a.ModificationTime); err != nil {
			return nil, err
		}
	}

	for _, r := range a.Resources {
		if r.Directory {
			if err := b.AddDirectory(r.Path); err != nil {
				return nil, err
			}
			continue
		}
		method, err := parseMethod(r.Compression)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", r.Path, err)
		}
		e := zipbuild.NewEntry(r.Path).WithMethod(method, level(r.Level))
		if r.ModificationTime != nil {
			e = e.WithModTime(*r.ModificationTime)
		}
		src, err := res.resolve(ctx, r.File)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", r.Path, err)
		}
		if err := b.AddResource(e, src); err != nil {
			return nil, err
		}
	}

	// Includes naming the same archive share one source and one mapping.
	var order []string
	grouped := make(map[string][]mapping.Mapping)
	for _, inc := range a.Includes {
		m, err := inc.mapping()
		if err != nil {
			return nil, fmt.Errorf("include %q: %w", inc.Archive, err)
		}
		if _, seen := grouped[inc.Archive]; !seen {
			order = append(order, inc.Archive)
		}
		grouped[inc.Archive] = append(grouped[inc.Archive], m)
	}
	for _, archive := range order {
		src, err := res.resolve(ctx, archive)
		if err != nil {
			return nil, fmt.Errorf("include %q: %w", archive, err)
		}
		m := grouped[archive]
		combined := m[0]
		if len(m) > 1 {
			combined = mapping.Multi(m...)
		}
		if err := b.AddInclude(src, combined); err != nil {
			return nil, err
		}
	}

	for i, t := range a.Transformers {
		f, err := t.factory()
		if err != nil {
			return nil, fmt.Errorf("transformer %d: %w", i, err)
		}
		if err := b.AddTransformer(f); err != nil {
			return nil, err
		}
	}

	return b.Build(filepath.Base(a.Output))
}

// mapping composes the filter, relocation and compression of an include.
func (inc includeConfig) mapping() (mapping.Mapping, error) {
	var filter mapping.Mapping
	if len(inc.Include) > 0 {
		wildcards := make([]mapping.Mapping, len(inc.Include))
		for i, p := range inc.Include {
			w, err := mapping.Wildcard(p)
			if err != nil {
				return nil, err
			}
			wildcards[i] = w
		}
		filter = wildcards[0]
		if len(wildcards) > 1 {
			filter = mapping.Multi(wildcards...)
		}
	}

	var target mapping.Mapping
	if inc.TargetDirectory != "" {
		var err error
		if target, err = mapping.TargetDirectory(inc.TargetDirectory); err != nil {
			return nil, err
		}
	}

	var compression mapping.Mapping
	if inc.Compression != "" {
		method, err := parseMethod(inc.Compression)
		if err != nil {
			return nil, err
		}
		code, _ := method.Code()
		compression = mapping.Method(code, level(inc.Level))
	}

	m := mapping.Chain(filter, mapping.Chain(target, compression))
	if m == nil {
		return mapping.Identity(), nil
	}
	return m, nil
}

func (t transformerConfig) factory() (transform.Factory, error) {
	switch strings.ToLower(t.Kind) {
	case "identity":
		return transform.Identity{}, nil
	case "skip-directories":
		return transform.SkipDirectories{}, nil
	case "move-to-directory":
		if t.Dir == "" {
			return nil, errors.New("move-to-directory: dir is required")
		}
		return transform.MoveToDirectory{Dir: t.Dir}, nil
	case "offset-mod-time":
		return transform.OffsetModTime{Offset: t.Offset}, nil
	case "stored":
		return transform.StoreAll{}, nil
	case "property":
		if t.Pattern == "" || t.Name == "" {
			return nil, errors.New("property: pattern and name are required")
		}
		return transform.PropertyAdder{Pattern: t.Pattern, Name: t.Name, Value: t.Value}, nil
	case "merge":
		if t.Pattern == "" || t.Target == "" {
			return nil, errors.New("merge: pattern and target are required")
		}
		return transform.Merge{Pattern: t.Pattern, Target: t.Target}, nil
	default:
		return nil, fmt.Errorf("unknown transformer kind %q", t.Kind)
	}
}

func parseMethod(s string) (zipbuild.Method, error) {
	switch strings.ToLower(s) {
	case "":
		return zipbuild.MethodDefault, nil
	case "stored", "store":
		return zipbuild.MethodStored, nil
	case "deflated", "deflate":
		return zipbuild.MethodDeflated, nil
	case "zstd":
		return zipbuild.MethodZstd, nil
	default:
		return zipbuild.Method{}, fmt.Errorf("unknown compression %q", s)
	}
}

func level(l *int) int {
	if l == nil {
		return zipbuild.DefaultLevel
	}
	return *l
}
