package dataset

import "errors"

var (
	// ErrEmptyCurve is returned for a curve without points.
	ErrEmptyCurve = errors.New("dataset: curve has no points")

	// ErrLengthMismatch is returned when x, y and err arrays differ in length.
	ErrLengthMismatch = errors.New("dataset: x, y and err lengths differ")

	// ErrNonPositiveError is returned for a point whose error is not above
	// zero.
	ErrNonPositiveError = errors.New("dataset: error must be positive")

	// ErrColumns is returned when a CSV row has too few columns.
	ErrColumns = errors.New("dataset: too few columns")
)
