// Package registry maps primitive type tags to their byte width and to
// typed read/write accessors.
//
// The set of tags is fixed: unsigned and signed 8, 16, 32 and 64 bit
// integers and 32 and 64 bit IEEE floats. Each tag has a Codec[T] holding
// one Accessor per byte order, so callers that know the tag at build time
// can capture a func([]byte) T with no further dispatch. Lookup returns the
// type-erased Entry used by the generic codec.
//
// The registry is immutable and safe for concurrent use.
package registry
