package parmap

import "errors"

var (
	// ErrStateDims is returned when a curve state has a different number of
	// dimensions than the state count.
	ErrStateDims = errors.New("parmap: state dimension mismatch")

	// ErrStateRange is returned when a state value is outside its dimension.
	ErrStateRange = errors.New("parmap: state value out of range")

	// ErrIndexRange is returned when a map entry points outside the
	// parameter vector.
	ErrIndexRange = errors.New("parmap: index out of range")

	// ErrLayout is returned for a layout that ties a column to an unknown or
	// later column.
	ErrLayout = errors.New("parmap: bad layout")
)
