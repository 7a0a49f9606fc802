package structview

import (
	"encoding/binary"
	"strings"
	"unsafe"

	"github.com/wippyai/structview/errors"
)

// Type is a primitive type tag. Tags are lowercase; unknown tags are kept
// as-is and rejected when a codec first resolves them.
type Type string

const (
	Uint8   Type = "uint8"
	Uint16  Type = "uint16"
	Uint32  Type = "uint32"
	Uint64  Type = "uint64"
	Int8    Type = "int8"
	Int16   Type = "int16"
	Int32   Type = "int32"
	Int64   Type = "int64"
	Float32 Type = "float32"
	Float64 Type = "float64"
)

// ParseType normalizes a type tag.
func ParseType(s string) Type {
	return Type(strings.ToLower(strings.TrimSpace(s)))
}

func (t Type) String() string { return string(t) }

// Endianness is the byte order of a single field. The zero value is BigEndian.
type Endianness uint8

const (
	BigEndian Endianness = iota
	LittleEndian
)

// ByteOrder returns the encoding/binary order for e.
func (e Endianness) ByteOrder() binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (e Endianness) String() string {
	if e == LittleEndian {
		return "little"
	}
	return "big"
}

var nativeOrder = func() Endianness {
	var x uint16 = 1
	if *(*byte)(unsafe.Pointer(&x)) == 1 {
		return LittleEndian
	}
	return BigEndian
}()

// Native returns the host byte order.
func Native() Endianness {
	return nativeOrder
}

// Cursor is the offset register threaded through a traversal. After encoding
// or decoding a schema that starts at offset O, Offset is O plus the schema's
// measured size.
type Cursor struct {
	Offset int
}

// Record is the decoded form of a schema instance. Scalars hold the Go type of
// their tag, primitive arrays hold typed slices, nested schemas hold Record and
// arrays of nested schemas hold []Record.
type Record map[string]any

// Memory is a byte-addressable region records can be viewed in place.
// Read returns a window that writes through to the underlying storage.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Size() uint32
}

// Bytes adapts a byte slice to Memory.
type Bytes []byte

var _ Memory = Bytes(nil)

func (b Bytes) Read(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(b)) {
		return nil, errors.OutOfBounds(errors.PhaseView, nil, int(offset), int(length), len(b))
	}
	return b[offset:end:end], nil
}

func (b Bytes) Size() uint32 {
	return uint32(len(b))
}
