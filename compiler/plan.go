package compiler

import (
	"unsafe"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/errors"
	"github.com/wippyai/structview/schema"
)

// Plan is a schema compiled to per-field closures at fixed offsets.
// A Plan is immutable and may be used from multiple goroutines.
type Plan struct {
	schema *schema.Schema
	dec    []decodeOp
	enc    []encodeOp
	size   int
	fast   int
}

// Schema returns the schema the plan was compiled from.
func (p *Plan) Schema() *schema.Schema { return p.schema }

// Size returns the encoded size of one record.
func (p *Plan) Size() int { return p.size }

// FastFields returns how many primitive field descriptors, nested ones
// included, may use the aligned fast path when the plan is bound.
func (p *Plan) FastFields() int { return p.fast }

// Decode reads one record at offset. Semantics match codec.Decode.
func (p *Plan) Decode(buf []byte, offset int, target structview.Record, cur *structview.Cursor) (structview.Record, error) {
	fr := frame{buf: buf}
	return p.decode(&fr, offset, target, cur)
}

// Encode writes one record at offset. Semantics match codec.Encode.
func (p *Plan) Encode(buf []byte, offset int, value structview.Record, cur *structview.Cursor) error {
	fr := frame{buf: buf}
	return p.encode(&fr, offset, value, cur)
}

func (p *Plan) decode(fr *frame, offset int, target structview.Record, cur *structview.Cursor) (structview.Record, error) {
	if err := p.check(errors.PhaseDecode, fr.buf, offset); err != nil {
		return target, err
	}
	if target == nil {
		target = make(structview.Record, len(p.dec))
	}
	p.decodeAt(fr, offset, target)
	if cur != nil {
		cur.Offset = offset + p.size
	}
	return target, nil
}

func (p *Plan) encode(fr *frame, offset int, value structview.Record, cur *structview.Cursor) error {
	if err := p.check(errors.PhaseEncode, fr.buf, offset); err != nil {
		return err
	}
	if err := p.encodeAt(fr, offset, value); err != nil {
		return err
	}
	if cur != nil {
		cur.Offset = offset + p.size
	}
	return nil
}

func (p *Plan) check(phase errors.Phase, buf []byte, offset int) error {
	if offset < 0 || offset+p.size > len(buf) {
		return errors.OutOfBounds(phase, nil, offset, p.size, len(buf))
	}
	return nil
}

func (p *Plan) decodeAt(fr *frame, base int, rec structview.Record) {
	for _, op := range p.dec {
		op(fr, base, rec)
	}
}

func (p *Plan) encodeAt(fr *frame, base int, rec map[string]any) error {
	for _, op := range p.enc {
		if err := op(fr, base, rec); err != nil {
			return err
		}
	}
	return nil
}

// Bind specializes the plan to buf. For each word width the buffer's base
// address is aligned to and its length is a multiple of, the bound plan
// reads and writes host-order fields at aligned offsets through a typed
// view of the whole buffer.
func (p *Plan) Bind(buf []byte) *Bound {
	b := &Bound{plan: p}
	b.fr.buf = buf
	if p.fast > 0 {
		b.fr.u16 = wordView[uint16](buf)
		b.fr.u32 = wordView[uint32](buf)
		b.fr.u64 = wordView[uint64](buf)
	}
	return b
}

func wordView[W word](buf []byte) []W {
	var zero W
	w := int(unsafe.Sizeof(zero))
	if len(buf) == 0 || len(buf)%w != 0 {
		return nil
	}
	base := unsafe.Pointer(unsafe.SliceData(buf))
	if uintptr(base)%uintptr(w) != 0 {
		return nil
	}
	return unsafe.Slice((*W)(base), len(buf)/w)
}

// Bound is a plan specialized to one buffer. It is not safe for concurrent
// writes to overlapping records.
type Bound struct {
	plan *Plan
	fr   frame
}

// Plan returns the underlying plan.
func (b *Bound) Plan() *Plan { return b.plan }

// Buffer returns the bound buffer.
func (b *Bound) Buffer() []byte { return b.fr.buf }

// Aligned reports whether a word view of the given width (2, 4 or 8) is in use.
func (b *Bound) Aligned(width int) bool {
	switch width {
	case 2:
		return b.fr.u16 != nil
	case 4:
		return b.fr.u32 != nil
	case 8:
		return b.fr.u64 != nil
	}
	return false
}

// Decode reads one record at offset of the bound buffer.
func (b *Bound) Decode(offset int, target structview.Record, cur *structview.Cursor) (structview.Record, error) {
	return b.plan.decode(&b.fr, offset, target, cur)
}

// Encode writes one record at offset of the bound buffer.
func (b *Bound) Encode(offset int, value structview.Record, cur *structview.Cursor) error {
	return b.plan.encode(&b.fr, offset, value, cur)
}
