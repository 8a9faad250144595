package mapping

import (
	"bytes"

	"github.com/meigma/zipbuild/internal/codec"
)

const (
	kindIdentity = iota + 1
	kindExclude
	kindTargetDirectory
	kindWildcard
	kindChain
	kindMulti
	kindCompression
)

// node is the structural form of a mapping used for identity.
type node struct {
	Kind     int    `cbor:"1,keyasint"`
	Arg      string `cbor:"2,keyasint,omitempty"`
	Code     uint16 `cbor:"3,keyasint,omitempty"`
	Level    int    `cbor:"4,keyasint,omitempty"`
	Children []node `cbor:"5,keyasint,omitempty"`
}

// Key returns the canonical structural key of m. Two mappings built from
// the same constructors with the same arguments have the same key.
func Key(m Mapping) []byte {
	if m == nil {
		return nil
	}
	b, err := codec.Marshal(m.node())
	if err != nil {
		// node holds only integers, strings and nested nodes.
		panic("mapping: encode key: " + err.Error())
	}
	return b
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Mapping) bool {
	return bytes.Equal(Key(a), Key(b))
}
