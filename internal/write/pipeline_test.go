package write

import (
	"errors"
	"hash/crc32"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipbuild/internal/testutil"
	"github.com/meigma/zipbuild/internal/ziptype"
	"github.com/meigma/zipbuild/mapping"
	"github.com/meigma/zipbuild/source"
	"github.com/meigma/zipbuild/transform"
)

type factoryFunc func() transform.Transformer

func (f factoryFunc) NewTransformer() transform.Transformer { return f() }

func use(t transform.Transformer) transform.Factory {
	return factoryFunc(func() transform.Transformer { return t })
}

// recorder passes everything through and remembers what it saw.
type recorder struct {
	seen    []string
	content map[string]string
	flush   []transform.Pending
	end     []transform.Pending
}

func (r *recorder) Process(e ziptype.Entry, rd io.Reader) (transform.Result, error) {
	r.seen = append(r.seen, e.Path())
	if rd != nil {
		b, err := io.ReadAll(rd)
		if err != nil {
			return transform.Result{}, err
		}
		if r.content == nil {
			r.content = make(map[string]string)
		}
		r.content[e.Path()] = string(b)
	}
	return transform.Pass(e), nil
}

func (r *recorder) Flush() ([]transform.Pending, error) { return r.flush, nil }
func (r *recorder) End() ([]transform.Pending, error)   { return r.end, nil }

// partial reads n bytes of every file and passes it on.
type partial struct {
	n int
}

func (p partial) Process(e ziptype.Entry, r io.Reader) (transform.Result, error) {
	if r != nil {
		buf := make([]byte, p.n)
		if _, err := io.ReadFull(r, buf); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return transform.Result{}, err
		}
	}
	return transform.Pass(e), nil
}

// forker emits a sibling for the entry named from.
type forker struct {
	from string
}

func (f forker) Process(e ziptype.Entry, _ io.Reader) (transform.Result, error) {
	if e.Path() == f.from {
		return transform.Pass(e, transform.File(ziptype.NewEntry("b.txt"), []byte("forked"))), nil
	}
	return transform.Pass(e), nil
}

func TestPipelineMergeConsumes(t *testing.T) {
	t.Parallel()

	data := writePlan(t, Plan{
		Resources: []Resource{
			fileResource("a.properties", "a=1"),
			fileResource("b/c.properties", "c=3"),
			fileResource("x.txt", "x"),
		},
		Factories: []transform.Factory{transform.Merge{Pattern: "**/*.properties", Target: "merged.properties"}},
	})
	files := readBack(t, data)
	require.Equal(t, []string{"x.txt", "merged.properties"}, testutil.Names(files))
	assert.Equal(t, "a=1\nc=3", files[1].Data)
}

func TestPipelineMergeCollidesWithExisting(t *testing.T) {
	t.Parallel()

	err := writeErr(t, Plan{
		Resources: []Resource{
			fileResource("a.properties", "a=1"),
			fileResource("merged.txt", "m"),
		},
		Factories: []transform.Factory{transform.Merge{Pattern: "*.properties", Target: "MERGED.txt"}},
	})
	assert.ErrorIs(t, err, ziptype.ErrDuplicatePath)
}

func TestPipelinePropertyRewriteReentersFromTop(t *testing.T) {
	t.Parallel()

	first := &recorder{}
	data := writePlan(t, Plan{
		Resources: []Resource{fileResource("app.properties", "name=app"), fileResource("x.txt", "x")},
		Factories: []transform.Factory{
			use(first),
			transform.PropertyAdder{Pattern: "*.properties", Name: "version", Value: "2"},
		},
	})

	assert.Equal(t, []string{"app.properties", "app.properties", "x.txt"}, first.seen)
	assert.Equal(t, "name=app\nversion=2\n", first.content["app.properties"])
	files := readBack(t, data)
	require.Equal(t, []string{"app.properties", "x.txt"}, testutil.Names(files))
	assert.Equal(t, "name=app\nversion=2\n", files[0].Data)
}

func TestPipelinePropertyAdders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		resources []Resource
		factories []transform.Factory
		want      map[string]string
	}{
		{
			name:      "two adders",
			resources: []Resource{fileResource("readme.txt", "readme"), fileResource("empty.properties", "")},
			factories: []transform.Factory{
				transform.PropertyAdder{Pattern: "**/*.properties", Name: "prop1", Value: "propval"},
				transform.PropertyAdder{Pattern: "**/*.properties", Name: "prop2", Value: "secondval"},
			},
			want: map[string]string{
				"readme.txt":       "readme",
				"empty.properties": "prop1=propval\nprop2=secondval\n",
			},
		},
		{
			name:      "after an earlier end",
			resources: []Resource{fileResource("a.txt", "a=1")},
			factories: []transform.Factory{
				transform.Merge{Pattern: "*.txt", Target: "all.properties"},
				transform.PropertyAdder{Pattern: "*.properties", Name: "k", Value: "v"},
			},
			want: map[string]string{"all.properties": "a=1\nk=v\n"},
		},
		{
			name:      "escaped name",
			resources: []Resource{fileResource("a.properties", "")},
			factories: []transform.Factory{
				transform.PropertyAdder{Pattern: "*.properties", Name: "a:b", Value: "v"},
			},
			want: map[string]string{"a.properties": `a\:b=v` + "\n"},
		},
		{
			name:      "replaced value",
			resources: []Resource{fileResource("a.properties", "k=old\n")},
			factories: []transform.Factory{
				transform.PropertyAdder{Pattern: "*.properties", Name: "k", Value: "new"},
			},
			want: map[string]string{"a.properties": "k=new\n"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := writePlan(t, Plan{Resources: tt.resources, Factories: tt.factories})
			got := make(map[string]string)
			for _, f := range readBack(t, data) {
				got[f.Name] = f.Data
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipelineFlushStartsAtFlusher(t *testing.T) {
	t.Parallel()

	first := &recorder{}
	second := &recorder{flush: []transform.Pending{transform.File(ziptype.NewEntry("flushed.txt"), []byte("f"))}}
	data := writePlan(t, Plan{
		Resources: []Resource{fileResource("a.txt", "a")},
		Factories: []transform.Factory{use(first), use(second)},
	})

	assert.Equal(t, []string{"a.txt"}, first.seen)
	assert.Equal(t, []string{"a.txt", "flushed.txt"}, second.seen)
	assert.Equal(t, []string{"a.txt", "flushed.txt"}, testutil.Names(readBack(t, data)))
}

func TestPipelineProcessEmitsFromTop(t *testing.T) {
	t.Parallel()

	data := writePlan(t, Plan{
		Resources: []Resource{fileResource("a.txt", "a")},
		Factories: []transform.Factory{
			transform.MoveToDirectory{Dir: "m"},
			use(forker{from: "m/a.txt"}),
		},
	})
	files := readBack(t, data)
	require.Equal(t, []string{"m/a.txt", "m/b.txt"}, testutil.Names(files))
	assert.Equal(t, "forked", files[1].Data)
}

func TestPipelineEndedTransformerDoesNotSeeOwnOutput(t *testing.T) {
	t.Parallel()

	first := &recorder{end: []transform.Pending{
		transform.File(ziptype.NewEntry("late.txt"), []byte("late")),
		transform.Directory(ziptype.NewEntry("late")),
	}}
	second := &recorder{}
	data := writePlan(t, Plan{
		Resources: []Resource{fileResource("a.txt", "a")},
		Factories: []transform.Factory{use(first), use(second)},
	})

	assert.Equal(t, []string{"a.txt"}, first.seen)
	assert.Equal(t, []string{"a.txt", "late.txt", "late"}, second.seen)
	assert.Equal(t, []string{"a.txt", "late.txt", "late/"}, testutil.Names(readBack(t, data)))
}

func TestPipelineReplaysConsumedBytes(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	data := writePlan(t, Plan{
		Resources: []Resource{
			fileResource("hello.txt", "hello world"),
			{Entry: ziptype.StoredEntry("s.txt"), Source: source.FromString("stored content")},
		},
		Factories: []transform.Factory{use(partial{n: 3}), use(partial{n: 5}), use(rec)},
	})

	assert.Equal(t, "hello world", rec.content["hello.txt"])
	assert.Equal(t, "stored content", rec.content["s.txt"])
	files := readBack(t, data)
	assert.Equal(t, "hello world", testutil.Find(t, files, "hello.txt").Data)
	s := testutil.Find(t, files, "s.txt")
	assert.Equal(t, "stored content", s.Data)
	assert.Equal(t, crc32.ChecksumIEEE([]byte("stored content")), s.CRC32)
}

func TestPipelinePartialReadThenWrite(t *testing.T) {
	t.Parallel()

	data := writePlan(t, Plan{
		Resources: []Resource{fileResource("a.txt", "abcdefgh")},
		Factories: []transform.Factory{use(partial{n: 4})},
	})
	assert.Equal(t, "abcdefgh", testutil.Find(t, readBack(t, data), "a.txt").Data)
}

func TestPipelineSkipDirectories(t *testing.T) {
	t.Parallel()

	inc := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "d/"},
		testutil.ZipEntry{Name: "d/x", Data: "x"},
	)
	data := writePlan(t, Plan{
		Resources: []Resource{dir("top")},
		Includes:  []Include{{Source: source.FromBytes(inc), Mapping: mapping.Identity()}},
		Factories: []transform.Factory{transform.SkipDirectories{}},
	})
	assert.Equal(t, []string{"d/x"}, testutil.Names(readBack(t, data)))
}

func TestPipelineStoreAllOnInclude(t *testing.T) {
	t.Parallel()

	inc := testutil.BuildZip(t, testutil.ZipEntry{Name: "x.txt", Data: "deflated", Method: ziptype.CodeDeflate})
	data := writePlan(t, Plan{
		Includes:  []Include{{Source: source.FromBytes(inc), Mapping: mapping.Identity()}},
		Factories: []transform.Factory{transform.StoreAll{}},
	})
	f := testutil.Find(t, readBack(t, data), "x.txt")
	assert.Equal(t, uint16(ziptype.CodeStore), f.Method)
	assert.Equal(t, crc32.ChecksumIEEE([]byte("deflated")), f.CRC32)
	assert.Equal(t, "deflated", f.Data)
}

func TestPipelineNullTransformer(t *testing.T) {
	t.Parallel()

	err := writeErr(t, Plan{
		Resources: []Resource{fileResource("a", "a")},
		Factories: []transform.Factory{factoryFunc(func() transform.Transformer { return nil })},
	})
	assert.ErrorIs(t, err, ziptype.ErrNullTransformer)
}

var errBoom = errors.New("boom")

type failing struct{}

func (failing) Process(ziptype.Entry, io.Reader) (transform.Result, error) {
	return transform.Result{}, errBoom
}

func TestPipelineTransformerFailure(t *testing.T) {
	t.Parallel()

	err := writeErr(t, Plan{
		Resources: []Resource{fileResource("a", "a")},
		Factories: []transform.Factory{use(failing{})},
	})
	assert.ErrorIs(t, err, ziptype.ErrTransformer)
	assert.ErrorIs(t, err, errBoom)
}

func TestPipelineInvalidOutputPath(t *testing.T) {
	t.Parallel()

	err := writeErr(t, Plan{
		Resources: []Resource{fileResource("a", "a")},
		Factories: []transform.Factory{transform.MoveToDirectory{Dir: "../up"}},
	})
	assert.ErrorIs(t, err, ziptype.ErrInvalidPath)
}

func TestPipelineIdentityMatchesFastPath(t *testing.T) {
	t.Parallel()

	inc := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "d/"},
		testutil.ZipEntry{Name: "d/x", Data: "x", Method: ziptype.CodeDeflate},
	)
	plan := Plan{
		Resources: []Resource{fileResource("a.txt", "alpha"), dir("b")},
		Includes:  []Include{{Source: source.FromBytes(inc), Mapping: mapping.Identity()}},
	}
	fast := writePlan(t, plan)
	plan.Factories = []transform.Factory{transform.Identity{}}
	assert.Equal(t, fast, writePlan(t, plan))
}
