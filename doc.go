// Package structview describes binary record layouts and converts between
// them and raw byte buffers.
//
// A layout (a schema) is an ordered list of fields. Each field is a scalar,
// a fixed-length array of scalars, a nested schema, or a fixed-length array
// of nested schemas. Every scalar carries its own byte order, so a single
// record may mix big-endian and little-endian fields. Records are tightly
// packed: no padding, no alignment, no length prefixes.
//
// # Architecture Overview
//
//	structview/          Type tags, Endianness, Cursor, Record, Memory
//	├── errors/          Structured error types (phase x kind)
//	├── schema/          Field descriptors, YAML and WIT loaders
//	├── registry/        Type tag -> width and typed accessors
//	├── codec/           Generic recursive decode, encode and measure
//	├── compiler/        Specialized per-schema plans with aligned fast path
//	├── view/            Fixed-stride indexed view over a buffer or memory
//	├── wasmmem/         Memory adapter over wazero guest memory
//	├── snapshot/        Saved copies of record tables in bbolt
//	└── cmd/structview/  CLI: measure, dump, export, set, browse, snapshot
//
// # Quick Start
//
//	point := schema.New("point",
//	    schema.Scalar("x", structview.Float64, structview.LittleEndian),
//	    schema.Scalar("y", structview.Float64, structview.LittleEndian),
//	)
//
//	v, err := view.Alloc(point, 1024)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = v.Set(3, structview.Record{"x": 1.5, "y": -2})
//	rec, _ := v.Get(3)
//	fmt.Println(rec["x"]) // 1.5
//
// # Generic and Compiled Paths
//
// The codec package walks the schema on every call. The compiler package
// resolves every type tag once and builds a tree of closures, one per field,
// so the hot path has no per-field dispatch on type. Both produce identical
// bytes and identical records; views use the compiled path by default.
//
// # Cursor
//
// Composite operations thread a caller-owned Cursor. There is no shared
// default cursor: pass nil to get a fresh one per call, or pass the same
// Cursor to consecutive calls to lay records out back to back.
package structview
