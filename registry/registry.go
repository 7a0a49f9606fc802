package registry

import (
	"encoding/binary"
	"math"
	"reflect"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/errors"
)

// Number is the set of Go types a registered tag decodes to.
type Number interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

// Accessor reads and writes one value of T in a fixed byte order.
// Both functions assume len(b) >= width; callers check bounds.
type Accessor[T Number] struct {
	Get func(b []byte) T
	Put func(b []byte, v T)
}

// Codec is the registry entry for one primitive tag.
type Codec[T Number] struct {
	tag      structview.Type
	width    int
	fromBits func(uint64) T
	toBits   func(T) uint64
	acc      [2]Accessor[T]
}

func newCodec[T Number](tag structview.Type, width int, fromBits func(uint64) T, toBits func(T) uint64) *Codec[T] {
	c := &Codec[T]{
		tag:      tag,
		width:    width,
		fromBits: fromBits,
		toBits:   toBits,
	}
	for _, order := range []structview.Endianness{structview.BigEndian, structview.LittleEndian} {
		bo := order.ByteOrder()
		c.acc[order] = Accessor[T]{
			Get: getter(width, bo, fromBits),
			Put: putter(width, bo, toBits),
		}
	}
	return c
}

func getter[T Number](width int, bo binary.ByteOrder, from func(uint64) T) func([]byte) T {
	switch width {
	case 1:
		return func(b []byte) T { return from(uint64(b[0])) }
	case 2:
		return func(b []byte) T { return from(uint64(bo.Uint16(b))) }
	case 4:
		return func(b []byte) T { return from(uint64(bo.Uint32(b))) }
	default:
		return func(b []byte) T { return from(bo.Uint64(b)) }
	}
}

func putter[T Number](width int, bo binary.ByteOrder, to func(T) uint64) func([]byte, T) {
	switch width {
	case 1:
		return func(b []byte, v T) { b[0] = byte(to(v)) }
	case 2:
		return func(b []byte, v T) { bo.PutUint16(b, uint16(to(v))) }
	case 4:
		return func(b []byte, v T) { bo.PutUint32(b, uint32(to(v))) }
	default:
		return func(b []byte, v T) { bo.PutUint64(b, to(v)) }
	}
}

// Type returns the tag this codec is registered under.
func (c *Codec[T]) Type() structview.Type { return c.tag }

// Width returns the encoded size in bytes.
func (c *Codec[T]) Width() int { return c.width }

// Accessor returns the typed accessor for order.
func (c *Codec[T]) Accessor(order structview.Endianness) Accessor[T] {
	return c.acc[order&1]
}

// FromBits converts a native-order word loaded from an aligned view.
func (c *Codec[T]) FromBits(bits uint64) T { return c.fromBits(bits) }

// ToBits converts v to the word stored through an aligned view.
func (c *Codec[T]) ToBits(v T) uint64 { return c.toBits(v) }

// Coerce converts any Go numeric value to T with Go conversion semantics.
func (c *Codec[T]) Coerce(v any) (T, bool) { return Coerce[T](v) }

func (c *Codec[T]) Read(b []byte, order structview.Endianness) any {
	return c.acc[order&1].Get(b)
}

func (c *Codec[T]) Write(b []byte, order structview.Endianness, v any) bool {
	x, ok := Coerce[T](v)
	if !ok {
		return false
	}
	c.acc[order&1].Put(b, x)
	return true
}

// ReadArray decodes n consecutive values. dst is reused when it is a []T with
// enough capacity.
func (c *Codec[T]) ReadArray(b []byte, order structview.Endianness, n int, dst any) any {
	prev, _ := dst.([]T)
	out := Reuse(prev, n)
	get := c.acc[order&1].Get
	for i := range out {
		out[i] = get(b[i*c.width:])
	}
	return out
}

// WriteArray encodes n consecutive values from v. Elements past the end of v
// are written as zero. On a non-numeric element it returns its index and false.
func (c *Codec[T]) WriteArray(b []byte, order structview.Endianness, n int, v any) (int, bool) {
	put := c.acc[order&1].Put
	w := c.width
	return Elements(v, n, func(i int, x T) { put(b[i*w:], x) })
}

// Entry is the type-erased view of a Codec used by the generic codec.
type Entry interface {
	Type() structview.Type
	Width() int
	Read(b []byte, order structview.Endianness) any
	Write(b []byte, order structview.Endianness, v any) bool
	ReadArray(b []byte, order structview.Endianness, n int, dst any) any
	WriteArray(b []byte, order structview.Endianness, n int, v any) (int, bool)
}

var (
	Uint8 = newCodec(structview.Uint8, 1,
		func(b uint64) uint8 { return uint8(b) }, func(v uint8) uint64 { return uint64(v) })
	Uint16 = newCodec(structview.Uint16, 2,
		func(b uint64) uint16 { return uint16(b) }, func(v uint16) uint64 { return uint64(v) })
	Uint32 = newCodec(structview.Uint32, 4,
		func(b uint64) uint32 { return uint32(b) }, func(v uint32) uint64 { return uint64(v) })
	Uint64 = newCodec(structview.Uint64, 8,
		func(b uint64) uint64 { return b }, func(v uint64) uint64 { return v })
	Int8 = newCodec(structview.Int8, 1,
		func(b uint64) int8 { return int8(b) }, func(v int8) uint64 { return uint64(uint8(v)) })
	Int16 = newCodec(structview.Int16, 2,
		func(b uint64) int16 { return int16(b) }, func(v int16) uint64 { return uint64(uint16(v)) })
	Int32 = newCodec(structview.Int32, 4,
		func(b uint64) int32 { return int32(b) }, func(v int32) uint64 { return uint64(uint32(v)) })
	Int64 = newCodec(structview.Int64, 8,
		func(b uint64) int64 { return int64(b) }, func(v int64) uint64 { return uint64(v) })
	Float32 = newCodec(structview.Float32, 4,
		func(b uint64) float32 { return math.Float32frombits(uint32(b)) },
		func(v float32) uint64 { return uint64(math.Float32bits(v)) })
	Float64 = newCodec(structview.Float64, 8,
		math.Float64frombits, math.Float64bits)
)

var entries = map[structview.Type]Entry{
	structview.Uint8:   Uint8,
	structview.Uint16:  Uint16,
	structview.Uint32:  Uint32,
	structview.Uint64:  Uint64,
	structview.Int8:    Int8,
	structview.Int16:   Int16,
	structview.Int32:   Int32,
	structview.Int64:   Int64,
	structview.Float32: Float32,
	structview.Float64: Float64,
}

// Lookup resolves a tag to its registry entry.
func Lookup(t structview.Type) (Entry, error) {
	if e, ok := entries[t]; ok {
		return e, nil
	}
	return nil, errors.UnknownType(errors.PhaseResolve, nil, string(t))
}

// Width returns the byte width of t, or 0 if t is not registered.
func Width(t structview.Type) int {
	if e, ok := entries[t]; ok {
		return e.Width()
	}
	return 0
}

// Types lists the registered tags.
func Types() []structview.Type {
	return []structview.Type{
		structview.Uint8, structview.Uint16, structview.Uint32, structview.Uint64,
		structview.Int8, structview.Int16, structview.Int32, structview.Int64,
		structview.Float32, structview.Float64,
	}
}

// Coerce converts any Go numeric value to T. Integers wrap and floats
// truncate, as with a Go conversion. Non-numeric values report false.
func Coerce[T Number](v any) (T, bool) {
	switch n := v.(type) {
	case T:
		return n, true
	case float64:
		return T(n), true
	case int:
		return T(n), true
	case uint8:
		return T(n), true
	case uint16:
		return T(n), true
	case uint32:
		return T(n), true
	case uint64:
		return T(n), true
	case int8:
		return T(n), true
	case int16:
		return T(n), true
	case int32:
		return T(n), true
	case int64:
		return T(n), true
	case float32:
		return T(n), true
	case uint:
		return T(n), true
	case uintptr:
		return T(n), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return T(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return T(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return T(rv.Float()), true
	}
	var zero T
	return zero, false
}

// Reuse returns prev resliced to n when it has the capacity, otherwise a
// new slice.
func Reuse[T any](prev []T, n int) []T {
	if cap(prev) >= n {
		return prev[:n]
	}
	return make([]T, n)
}

// Elements feeds the first n elements of v to put, coercing each to T.
// v may be nil, a []T, or any slice or array of numerics. Missing elements
// are fed as zero. On a non-numeric element it returns its index and false;
// if v is not a sequence at all it returns -1 and false.
func Elements[T Number](v any, n int, put func(i int, x T)) (int, bool) {
	switch s := v.(type) {
	case nil:
		for i := 0; i < n; i++ {
			put(i, 0)
		}
		return 0, true
	case []T:
		for i := 0; i < n; i++ {
			if i < len(s) {
				put(i, s[i])
			} else {
				put(i, 0)
			}
		}
		return 0, true
	case []any:
		for i := 0; i < n; i++ {
			if i >= len(s) || s[i] == nil {
				put(i, 0)
				continue
			}
			x, ok := Coerce[T](s[i])
			if !ok {
				return i, false
			}
			put(i, x)
		}
		return 0, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return -1, false
	}
	l := rv.Len()
	for i := 0; i < n; i++ {
		if i >= l {
			put(i, 0)
			continue
		}
		x, ok := Coerce[T](rv.Index(i).Interface())
		if !ok {
			return i, false
		}
		put(i, x)
	}
	return 0, true
}
