// Package errors provides structured error types for structview.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the field path, the Go type and wire type involved, and a
// cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("header", "len").
//		GoType("string").
//		WireType("uint32").
//		Detail("value is not numeric").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownType(errors.PhaseResolve, path, "uint128")
//	err := errors.OutOfBounds(errors.PhaseDecode, path, 48, 8, 52)
//
// Error.Is matches on Phase and Kind. IsKind matches on Kind alone, which is what
// callers usually want when the same failure can surface from the generic codec
// and from a compiled plan.
package errors
