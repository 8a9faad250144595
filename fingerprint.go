package zipbuild

import (
	"fmt"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/zipbuild/internal/codec"
	"github.com/meigma/zipbuild/internal/write"
	"github.com/meigma/zipbuild/mapping"
	"github.com/meigma/zipbuild/transform"
)

// Fingerprint summarizes everything that affects the bytes of an archive.
// Two archives with equal fingerprints produce byte-identical output, given
// include sources whose content IDs match their bytes. Fingerprint is
// comparable and can be used as a map key.
type Fingerprint struct {
	// Resources folds path, modification time, method and level of the
	// directly added resources in output order.
	Resources digest.Digest
	// Contents folds the content IDs of the directly added resources.
	Contents digest.Digest
	// Includes folds the content ID and mapping of every include in order.
	Includes digest.Digest
	// Transformers folds the structural keys of the transformer factories.
	Transformers digest.Digest
	// DefaultModTime is the default modification time in Unix nanoseconds.
	// It is zero when no default was set or no resources exist.
	DefaultModTime int64
}

// Digest returns a single digest over all components.
func (f Fingerprint) Digest() digest.Digest {
	b, err := codec.Marshal(f)
	if err != nil {
		// Fingerprint holds only strings and an integer.
		panic("zipbuild: encode fingerprint: " + err.Error())
	}
	return digest.FromBytes(b)
}

// String returns the digest in its string form.
func (f Fingerprint) String() string {
	return f.Digest().String()
}

type resourceRecord struct {
	Path    string `cbor:"1,keyasint"`
	Dir     bool   `cbor:"2,keyasint"`
	HasMod  bool   `cbor:"3,keyasint"`
	ModTime int64  `cbor:"4,keyasint"`
	Method  uint16 `cbor:"5,keyasint"`
	Set     bool   `cbor:"6,keyasint"`
	Level   int    `cbor:"7,keyasint"`
}

type includeRecord struct {
	ContentID string `cbor:"1,keyasint"`
	Mapping   []byte `cbor:"2,keyasint"`
}

// dirContentID stands in for the content of directory resources.
const dirContentID = "directory"

func fingerprint(plan write.Plan, defaultModTime time.Time) (Fingerprint, error) {
	var fp Fingerprint

	resources := make([]resourceRecord, len(plan.Resources))
	contents := make([]string, len(plan.Resources))
	for i, r := range plan.Resources {
		e := r.Entry
		code, set := e.Method().Code()
		rec := resourceRecord{
			Path:   e.Path(),
			Dir:    r.Source == nil,
			Method: code,
			Set:    set,
			Level:  e.Level(),
		}
		if mod, ok := e.ModTime(); ok {
			rec.HasMod, rec.ModTime = true, mod.UnixNano()
		}
		resources[i] = rec
		if r.Source == nil {
			contents[i] = dirContentID
		} else {
			contents[i] = r.Source.ContentID().String()
		}
	}

	includes := make([]includeRecord, len(plan.Includes))
	for i, inc := range plan.Includes {
		includes[i] = includeRecord{
			ContentID: inc.Source.ContentID().String(),
			Mapping:   mapping.Key(inc.Mapping),
		}
	}

	transformers := make([][]byte, len(plan.Factories))
	for i, f := range plan.Factories {
		key, err := transform.Key(f)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("%w: factory %d (%T) has no structural key: %w", ErrTransformer, i, f, err)
		}
		transformers[i] = key
	}

	var err error
	if fp.Resources, err = fold(resources); err != nil {
		return Fingerprint{}, err
	}
	if fp.Contents, err = fold(contents); err != nil {
		return Fingerprint{}, err
	}
	if fp.Includes, err = fold(includes); err != nil {
		return Fingerprint{}, err
	}
	if fp.Transformers, err = fold(transformers); err != nil {
		return Fingerprint{}, err
	}
	if len(plan.Resources) > 0 && !defaultModTime.IsZero() {
		fp.DefaultModTime = defaultModTime.UnixNano()
	}
	return fp, nil
}

// fold digests an ordered list of records.
func fold(v any) (digest.Digest, error) {
	b, err := codec.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode fingerprint: %w", err)
	}
	return digest.FromBytes(b), nil
}
