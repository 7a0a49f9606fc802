// Package view presents a byte buffer as a random-access sequence of
// fixed-stride records.
//
// The stride is the schema's encoded size. Get decodes record i on demand
// and Set encodes into it; nothing is materialized up front. Indexes outside
// [0, Len()) read as absent and write as a no-op.
//
// By default a view is backed by a compiled plan bound to its buffer, so
// aligned host-order fields take the fast path. WithGeneric switches to the
// generic codec. WithReuse trades allocation for aliasing: every Get returns
// the same record, overwritten in place. Views compile with a private
// compiler unless WithCompiler shares one, so plan caches never outlive the
// views that use them.
//
// FromMemory views a window of any structview.Memory, such as WebAssembly
// guest memory, in place.
package view
