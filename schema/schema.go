package schema

import (
	"strconv"

	"github.com/wippyai/structview"
)

// FieldKind discriminates the Field union.
type FieldKind uint8

const (
	KindScalar FieldKind = iota
	KindArray
	KindStruct
	KindStructArray
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindStructArray:
		return "struct-array"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// LengthSource resolves the element count of an array field.
// Fixed-length arrays return a constant from both methods. Anything else is
// an extension point: the generic codec consults it, the compiler rejects it.
type LengthSource interface {
	LengthForRead(buf []byte, cur *structview.Cursor) int
	LengthForWrite(buf []byte, cur *structview.Cursor, value any) int
}

// FixedLength is a constant element count.
type FixedLength int

func (n FixedLength) LengthForRead([]byte, *structview.Cursor) int       { return int(n) }
func (n FixedLength) LengthForWrite([]byte, *structview.Cursor, any) int { return int(n) }

// Field is one named slot of a schema.
//
// Type and Order apply to KindScalar and KindArray; Struct applies to
// KindStruct and KindStructArray; Length applies to the array kinds.
type Field struct {
	Name   string
	Kind   FieldKind
	Type   structview.Type
	Order  structview.Endianness
	Struct *Schema
	Length LengthSource
}

// Scalar declares a single primitive value.
func Scalar(name string, t structview.Type, order structview.Endianness) Field {
	return Field{Name: name, Kind: KindScalar, Type: t, Order: order}
}

// Array declares n consecutive primitive values.
func Array(name string, t structview.Type, n int, order structview.Endianness) Field {
	return ArrayOf(name, t, FixedLength(n), order)
}

// ArrayOf declares a primitive array with a custom length source.
func ArrayOf(name string, t structview.Type, length LengthSource, order structview.Endianness) Field {
	return Field{Name: name, Kind: KindArray, Type: t, Order: order, Length: length}
}

// Struct declares a nested record.
func Struct(name string, s *Schema) Field {
	return Field{Name: name, Kind: KindStruct, Struct: s}
}

// StructArray declares n consecutive nested records.
func StructArray(name string, s *Schema, n int) Field {
	return StructArrayOf(name, s, FixedLength(n))
}

// StructArrayOf declares a nested record array with a custom length source.
func StructArrayOf(name string, s *Schema, length LengthSource) Field {
	return Field{Name: name, Kind: KindStructArray, Struct: s, Length: length}
}

// IsArray reports whether f repeats its element.
func (f Field) IsArray() bool {
	return f.Kind == KindArray || f.Kind == KindStructArray
}

// FixedLen returns the element count when f has a constant length.
func (f Field) FixedLen() (int, bool) {
	n, ok := f.Length.(FixedLength)
	return int(n), ok
}

// Schema is an ordered sequence of fields. Field names are not checked for
// uniqueness; duplicate names decode into the same record key.
// A Schema must not be modified after it is first used.
type Schema struct {
	Name   string
	Fields []Field
}

// New builds a schema from fields in order.
func New(name string, fields ...Field) *Schema {
	return &Schema{Name: name, Fields: append([]Field(nil), fields...)}
}

// Len returns the number of top-level fields.
func (s *Schema) Len() int { return len(s.Fields) }

// Field returns the first field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Walk visits every field depth-first. path holds the enclosing field names
// followed by f.Name. Returning a non-nil error stops the walk.
func (s *Schema) Walk(fn func(path []string, f Field) error) error {
	return s.walk(nil, fn)
}

func (s *Schema) walk(prefix []string, fn func([]string, Field) error) error {
	for _, f := range s.Fields {
		path := append(append([]string(nil), prefix...), f.Name)
		if err := fn(path, f); err != nil {
			return err
		}
		if f.Struct != nil {
			if err := f.Struct.walk(path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
