// Package errors provides structured error types for the h2gis library.
//
// Errors are categorized by Phase (where the error occurred) and Kind
// (error category). Use the Builder for structured construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
//		Path("column", "the_geom").
//		Detail("need %d bytes", 8).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MissingSymbol("h2gis_connect")
//	err := errors.InvalidHandle("connection", -1)
//
// All errors implement the standard error interface and support
// errors.Is/As; two Errors match when Phase and Kind agree.
package errors
