package ziptype

import (
	"archive/zip"
	"strconv"
)

// Compression method codes understood natively by the writer.
const (
	CodeStore   uint16 = zip.Store
	CodeDeflate uint16 = zip.Deflate
	CodeZstd    uint16 = 93
)

// DefaultLevel asks the codec for its default compression level.
const DefaultLevel = -1

// Method identifies the compression method of an entry. The zero value is
// MethodDefault, which defers to Deflate at the default level.
type Method struct {
	code uint16
	set  bool
}

// Predefined methods.
var (
	MethodDefault  = Method{}
	MethodStored   = Method{code: CodeStore, set: true}
	MethodDeflated = Method{code: CodeDeflate, set: true}
	MethodZstd     = Method{code: CodeZstd, set: true}
)

// MethodCode returns the method for a raw ZIP compression method code.
func MethodCode(code uint16) Method {
	return Method{code: code, set: true}
}

// Code returns the ZIP method code and whether the method was set explicitly.
func (m Method) Code() (uint16, bool) {
	return m.code, m.set
}

// IsSet reports whether the method was set explicitly.
func (m Method) IsSet() bool {
	return m.set
}

// Resolve returns the effective method code, applying the Deflate default.
func (m Method) Resolve() uint16 {
	if !m.set {
		return CodeDeflate
	}
	return m.code
}

func (m Method) String() string {
	if !m.set {
		return "default"
	}
	switch m.code {
	case CodeStore:
		return "stored"
	case CodeDeflate:
		return "deflated"
	case CodeZstd:
		return "zstd"
	default:
		return "method(" + strconv.Itoa(int(m.code)) + ")"
	}
}

// NormalizeLevel maps every level below DefaultLevel to DefaultLevel.
func NormalizeLevel(level int) int {
	if level < DefaultLevel {
		return DefaultLevel
	}
	return level
}
