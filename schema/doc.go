// Package schema describes packed binary record layouts.
//
// A Schema is an ordered list of Fields. Field is a tagged union resolved at
// construction time:
//
//	KindScalar       one primitive value
//	KindArray        a fixed number of primitive values
//	KindStruct       a nested schema
//	KindStructArray  a fixed number of nested schemas
//
// Every primitive field carries its own byte order. Type tags are not
// validated here; an unknown tag fails when a codec first resolves it.
//
// Schemas can be built in code, parsed from YAML (ParseYAML, LoadFile) or
// derived from a WIT record (FromWIT).
package schema
