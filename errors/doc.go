// Package errors provides structured fault types for memsafe.
//
// Errors are categorized by Phase (which safety mechanism caught the fault)
// and Kind (the fault class). The Error type carries the subject the fault is
// about, a detail message and an optional cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBorrow, errors.KindDangling).
//		Subject("result").
//		Detail("%q does not live long enough", "string2").
//		Build()
//
// Or use convenience constructors for common fault classes:
//
//	err := errors.OutOfBounds(errors.PhaseBounds, []string{"buffer"}, 10, 5)
//	err := errors.UseAfterMove("data")
//	err := errors.LengthMismatch(8, 5)
//
// Every fault aborts the operation that raised it: no partial write is
// performed before one of these errors is returned.
//
// All errors implement the standard error interface and support errors.Is/As.
// KindOf and IsKind inspect wrapped chains.
package errors
