// Package compiler specializes schemas into plans of typed closures.
//
// A Plan produces the same bytes and the same records as the codec package,
// but resolves every type tag and field offset once, at compile time. The
// per-call work is a flat walk over pre-built closures:
//
//	┌───────────────────────────────────────────────────────────┐
//	│ Schema ─[Compile]→ Plan ─[Bind(buf)]→ Bound                │
//	│                     │                    │                 │
//	│          Decode/Encode(buf, off)   Decode/Encode(off)      │
//	└───────────────────────────────────────────────────────────┘
//
// # Layout
//
// Records are tightly packed, so every field sits at a constant offset from
// the record base. Nested schemas are compiled to their own cached plans and
// invoked at base + field offset; struct arrays step by the nested size.
//
// # Bounds
//
// Decode and Encode check base+Size against the buffer once per call and
// return an out_of_bounds error instead of faulting.
//
// # Aligned Fast Path
//
// Bind inspects the buffer once. For each width in {2, 4, 8}, if the
// buffer's base address is a multiple of the width and its length is too,
// the bound plan keeps a []uint16, []uint32 or []uint64 view of the whole
// buffer. A field access then uses the view when:
//
//   - aligned access is enabled on the compiler (WithAlignedAccess),
//   - the field's byte order equals the host order (structview.Native), and
//   - the field offset is a multiple of its width.
//
// Otherwise it falls back to the byte-order accessor. The byte order check
// matters: a view stores host-order words, so a big-endian field on a
// little-endian host must never go through it.
//
// # Caching
//
// Compile caches plans by schema pointer in a sync.Map. Schemas must not be
// modified once compiled.
package compiler
