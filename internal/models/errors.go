package models

import "errors"

// Precondition failures. Callers test them with errors.Is; the wrapped
// message carries the offending values.
var (
	// ErrInvalidArgument covers missing inputs, too few raters and bad options.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrShapeMismatch is returned when slice, row or column counts disagree.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrGeometryMismatch is returned when spacing or orientation cannot be
	// reconciled onto one grid.
	ErrGeometryMismatch = errors.New("geometry mismatch")

	// ErrInvalidIndices is returned for malformed sparse index input.
	ErrInvalidIndices = errors.New("invalid indices")
)
