package compiler

import (
	"fmt"
	"strconv"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/codec"
	"github.com/wippyai/structview/errors"
	"github.com/wippyai/structview/registry"
	"github.com/wippyai/structview/schema"
)

// frame is the buffer a plan runs against. The word views are set only for a
// bound plan whose buffer is aligned for that width.
type frame struct {
	buf []byte
	u16 []uint16
	u32 []uint32
	u64 []uint64
}

type (
	decodeOp func(fr *frame, base int, rec structview.Record)
	encodeOp func(fr *frame, base int, rec map[string]any) error
)

type word interface {
	uint16 | uint32 | uint64
}

func view16(fr *frame) []uint16 { return fr.u16 }
func view32(fr *frame) []uint32 { return fr.u32 }
func view64(fr *frame) []uint64 { return fr.u64 }

// access reads and writes one primitive type at a byte offset of a frame.
type access[T registry.Number] struct {
	read  func(fr *frame, off int) T
	write func(fr *frame, off int, v T)
	readN func(fr *frame, off int, dst []T)
}

func generalAccess[T registry.Number](c *registry.Codec[T], order structview.Endianness) access[T] {
	acc := c.Accessor(order)
	get, put, w := acc.Get, acc.Put, c.Width()
	return access[T]{
		read:  func(fr *frame, off int) T { return get(fr.buf[off:]) },
		write: func(fr *frame, off int, v T) { put(fr.buf[off:], v) },
		readN: func(fr *frame, off int, dst []T) {
			for i := range dst {
				dst[i] = get(fr.buf[off+i*w:])
			}
		},
	}
}

// alignedAccess goes through the frame's word view when the offset is a
// multiple of the width and falls back to the byte accessor otherwise.
// Only valid for fields in host byte order.
func alignedAccess[T registry.Number, W word](c *registry.Codec[T], order structview.Endianness, view func(*frame) []W) access[T] {
	g := generalAccess(c, order)
	from, to, w := c.FromBits, c.ToBits, c.Width()
	return access[T]{
		read: func(fr *frame, off int) T {
			if v := view(fr); v != nil && off%w == 0 {
				return from(uint64(v[off/w]))
			}
			return g.read(fr, off)
		},
		write: func(fr *frame, off int, x T) {
			if v := view(fr); v != nil && off%w == 0 {
				v[off/w] = W(to(x))
				return
			}
			g.write(fr, off, x)
		},
		readN: func(fr *frame, off int, dst []T) {
			if v := view(fr); v != nil && off%w == 0 {
				v = v[off/w : off/w+len(dst)]
				for i := range dst {
					dst[i] = from(uint64(v[i]))
				}
				return
			}
			g.readN(fr, off, dst)
		},
	}
}

// pick returns the aligned accessor when enabled and the field is in host
// byte order. The word views hold native-order values, so any other field
// must use the byte accessor.
func pick[T registry.Number, W word](c *registry.Codec[T], order structview.Endianness, aligned bool, view func(*frame) []W) (access[T], bool) {
	if aligned && order == structview.Native() {
		return alignedAccess(c, order, view), true
	}
	return generalAccess(c, order), false
}

func primitiveOps[T registry.Number](f schema.Field, rel, n int, c *registry.Codec[T], a access[T], fast bool) fieldOps {
	name, tag, w := f.Name, string(f.Type), c.Width()
	path := []string{name}
	ops := fieldOps{}
	if fast {
		ops.fast = 1
	}

	if n < 0 {
		ops.size = w
		ops.dec = func(fr *frame, base int, rec structview.Record) {
			rec[name] = a.read(fr, base+rel)
		}
		ops.enc = func(fr *frame, base int, rec map[string]any) error {
			v, ok := rec[name]
			if !ok || v == nil {
				return errors.ShapeMismatch(errors.PhaseEncode, path, "missing value for scalar field")
			}
			x, ok := registry.Coerce[T](v)
			if !ok {
				return errors.TypeMismatch(errors.PhaseEncode, path, goType(v), tag)
			}
			a.write(fr, base+rel, x)
			return nil
		}
		return ops
	}

	ops.size = w * n
	ops.dec = func(fr *frame, base int, rec structview.Record) {
		prev, _ := rec[name].([]T)
		out := registry.Reuse(prev, n)
		a.readN(fr, base+rel, out)
		rec[name] = out
	}
	ops.enc = func(fr *frame, base int, rec map[string]any) error {
		off := base + rel
		v := rec[name]
		if s, ok := v.([]T); ok {
			for i := 0; i < n; i++ {
				var x T
				if i < len(s) {
					x = s[i]
				}
				a.write(fr, off+i*w, x)
			}
			return nil
		}
		i, ok := registry.Elements(v, n, func(i int, x T) { a.write(fr, off+i*w, x) })
		if !ok {
			if i < 0 {
				return errors.TypeMismatch(errors.PhaseEncode, path, goType(v), tag+" array")
			}
			return errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
				Path(name, index(i)).
				WireType(tag).
				Detail("element is not numeric").
				Build()
		}
		return nil
	}
	return ops
}

func structOps(name string, rel int, sub *Plan) fieldOps {
	path := []string{name}
	fields := len(sub.dec)
	return fieldOps{
		size: sub.size,
		fast: sub.fast,
		dec: func(fr *frame, base int, rec structview.Record) {
			r, ok := rec[name].(structview.Record)
			if !ok || r == nil {
				r = make(structview.Record, fields)
			}
			sub.decodeAt(fr, base+rel, r)
			rec[name] = r
		},
		enc: func(fr *frame, base int, rec map[string]any) error {
			v := rec[name]
			r, ok := codec.AsRecord(v)
			if !ok {
				return errors.TypeMismatch(errors.PhaseEncode, path, goType(v), "record")
			}
			if err := sub.encodeAt(fr, base+rel, r); err != nil {
				return prefix(err, name)
			}
			return nil
		},
	}
}

func structArrayOps(name string, rel, n int, sub *Plan) fieldOps {
	path := []string{name}
	fields, stride := len(sub.dec), sub.size
	return fieldOps{
		size: stride * n,
		fast: sub.fast,
		dec: func(fr *frame, base int, rec structview.Record) {
			prev, _ := rec[name].([]structview.Record)
			out := registry.Reuse(prev, n)
			off := base + rel
			for i := range out {
				if out[i] == nil {
					out[i] = make(structview.Record, fields)
				}
				sub.decodeAt(fr, off+i*stride, out[i])
			}
			rec[name] = out
		},
		enc: func(fr *frame, base int, rec map[string]any) error {
			off := base + rel
			v := rec[name]
			if rs, ok := v.([]structview.Record); ok {
				for i := 0; i < n; i++ {
					var r structview.Record
					if i < len(rs) {
						r = rs[i]
					}
					if err := sub.encodeAt(fr, off+i*stride, r); err != nil {
						return prefix(err, name, index(i))
					}
				}
				return nil
			}

			elems, ok := codec.Records(v)
			if !ok {
				return errors.TypeMismatch(errors.PhaseEncode, path, goType(v), "record array")
			}
			for i := 0; i < n; i++ {
				var r map[string]any
				if i < len(elems) {
					if r, ok = codec.AsRecord(elems[i]); !ok {
						return errors.TypeMismatch(errors.PhaseEncode, []string{name, index(i)}, goType(elems[i]), "record")
					}
				}
				if err := sub.encodeAt(fr, off+i*stride, r); err != nil {
					return prefix(err, name, index(i))
				}
			}
			return nil
		},
	}
}

// prefix returns err with segs prepended to its field path.
func prefix(err error, segs ...string) error {
	se, ok := err.(*errors.Error)
	if !ok {
		return err
	}
	out := *se
	out.Path = make([]string, 0, len(segs)+len(se.Path))
	out.Path = append(out.Path, segs...)
	out.Path = append(out.Path, se.Path...)
	return &out
}

func index(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func goType(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
