package objective

import "errors"

var (
	// ErrRowWidth reports a map row whose width differs from the number of
	// equation parameters.
	ErrRowWidth = errors.New("objective: map row width does not match equation")

	// ErrMapRows reports a map with a different number of rows than curves.
	ErrMapRows = errors.New("objective: map rows do not match curves")

	// ErrResample reports an index list that leaves a curve with fewer than
	// two points.
	ErrResample = errors.New("objective: resample leaves a curve too short")
)
