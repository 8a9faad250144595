// Package codec encodes values into canonical byte keys used for
// structural identity and fingerprinting.
package codec

import (
	"encoding"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes.
var encMode cbor.EncMode

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	encMode, err = opts.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// typedKey pairs a value's dynamic type with its encoded form so that two
// values of different types never share a key.
type typedKey struct {
	Type  string `cbor:"1,keyasint"`
	Value []byte `cbor:"2,keyasint"`
}

// Key returns a canonical identity key for v.
//
// Values implementing encoding.BinaryMarshaler supply their own encoding;
// everything else is encoded from its exported fields. The dynamic type name
// is always part of the key.
func Key(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("codec: nil value")
	}
	t := reflect.TypeOf(v)
	name := t.String()
	if t.PkgPath() != "" {
		name = t.PkgPath() + "." + t.Name()
	} else if t.Kind() == reflect.Pointer && t.Elem().PkgPath() != "" {
		name = "*" + t.Elem().PkgPath() + "." + t.Elem().Name()
	}

	var value []byte
	var err error
	if m, ok := v.(encoding.BinaryMarshaler); ok {
		value, err = m.MarshalBinary()
	} else {
		value, err = encMode.Marshal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: encode %s: %w", name, err)
	}
	return encMode.Marshal(typedKey{Type: name, Value: value})
}
