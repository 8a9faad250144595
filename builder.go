package zipbuild

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/meigma/zipbuild/internal/pathutil"
	"github.com/meigma/zipbuild/internal/write"
	"github.com/meigma/zipbuild/mapping"
	"github.com/meigma/zipbuild/source"
	"github.com/meigma/zipbuild/transform"
)

// Builder collects the inputs of one archive. It is owned by a single
// caller and is consumed by Build; any later use returns ErrBuilderConsumed.
type Builder struct {
	cfg config

	resources []resource
	keys      map[string]string
	folder    *pathutil.Folder

	includes  []write.Include
	factories []transform.Factory

	defaultModTime time.Time
	consumed       bool
}

type resource struct {
	key string
	write.Resource
}

// NewBuilder returns an empty builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		keys:   make(map[string]string),
		folder: pathutil.NewFolder(),
	}
	for _, opt := range opts {
		opt(&b.cfg)
	}
	return b
}

// AddResource adds an entry with the bytes of src. A nil src adds a
// directory. The path is normalized to its forward-relative form; paths
// that are empty, absolute or escape the root fail with ErrInvalidPath.
// Paths that collide case-insensitively with an earlier resource fail with
// ErrDuplicatePath.
func (b *Builder) AddResource(e Entry, src source.Source) error {
	if b.consumed {
		return ErrBuilderConsumed
	}
	clean, ok := pathutil.Clean(e.Path())
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPath, e.Path())
	}
	key := b.folder.Key(clean)
	if prev, dup := b.keys[key]; dup {
		return fmt.Errorf("%w: %q collides with %q", ErrDuplicatePath, clean, prev)
	}
	b.keys[key] = clean
	b.resources = append(b.resources, resource{
		key:      key,
		Resource: write.Resource{Entry: e.WithPath(clean), Source: src},
	})
	return nil
}

// AddFile adds a file entry at path with default attributes.
func (b *Builder) AddFile(path string, src source.Source) error {
	if src == nil {
		return fmt.Errorf("%w: nil source for %q", ErrSourceNotFound, path)
	}
	return b.AddResource(NewEntry(path), src)
}

// AddDirectory adds a directory entry at path.
func (b *Builder) AddDirectory(path string) error {
	return b.AddResource(NewEntry(strings.TrimSuffix(path, "/")), nil)
}

// AddInclude re-exports the entries of the archive in src through m. A nil
// mapping is Identity. Each source may be included once, compared by
// identity; combine several mappings for one source with mapping.Multi.
func (b *Builder) AddInclude(src source.Source, m mapping.Mapping) error {
	if b.consumed {
		return ErrBuilderConsumed
	}
	if src == nil {
		return fmt.Errorf("%w: nil include source", ErrSourceNotFound)
	}
	if !reflect.TypeOf(src).Comparable() {
		return fmt.Errorf("%w: %T", ErrNonComparableSource, src)
	}
	for _, inc := range b.includes {
		if inc.Source == src {
			return fmt.Errorf("%w: %T %s", ErrDuplicateInclude, src, src.ContentID())
		}
	}
	if m == nil {
		m = mapping.Identity()
	}
	b.includes = append(b.includes, write.Include{Source: src, Mapping: m})
	return nil
}

// AddTransformer appends a transformer factory to the pipeline. Factories
// are instantiated once per archive write.
func (b *Builder) AddTransformer(f transform.Factory) error {
	if b.consumed {
		return ErrBuilderConsumed
	}
	if f == nil {
		return ErrNullTransformer
	}
	b.factories = append(b.factories, f)
	return nil
}

// SetDefaultModTime sets the modification time of resources added without
// one. It does not apply to included or transformer-emitted entries.
func (b *Builder) SetDefaultModTime(t time.Time) error {
	if b.consumed {
		return ErrBuilderConsumed
	}
	b.defaultModTime = t
	return nil
}

// Build freezes the builder into an archive named name and computes its
// fingerprint. The builder cannot be used afterwards.
func (b *Builder) Build(name string) (*Archive, error) {
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true

	sorted := slices.Clone(b.resources)
	slices.SortFunc(sorted, func(x, y resource) int {
		return strings.Compare(x.key, y.key)
	})
	resources := make([]write.Resource, len(sorted))
	for i, r := range sorted {
		if _, ok := r.Entry.ModTime(); !ok && !b.defaultModTime.IsZero() {
			r.Entry = r.Entry.WithModTime(b.defaultModTime)
		}
		resources[i] = r.Resource
	}

	plan := write.Plan{
		Resources: resources,
		Includes:  slices.Clone(b.includes),
		Factories: slices.Clone(b.factories),
	}
	fp, err := fingerprint(plan, b.defaultModTime)
	if err != nil {
		return nil, err
	}

	b.cfg.log().Debug("archive built",
		slog.String("name", name),
		slog.Int("resources", len(plan.Resources)),
		slog.Int("includes", len(plan.Includes)),
		slog.Int("transformers", len(plan.Factories)),
		slog.String("fingerprint", fp.String()))

	return &Archive{name: name, plan: plan, fingerprint: fp, cfg: b.cfg}, nil
}
