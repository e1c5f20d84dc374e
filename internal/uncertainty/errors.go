package uncertainty

import "errors"

var (
	// ErrTooFewRepeats is returned when fewer than two repeats succeed.
	ErrTooFewRepeats = errors.New("uncertainty: too few successful repeats")

	// ErrDegenerateSample is recorded when bootstrap draws keep collapsing
	// a curve onto a single point.
	ErrDegenerateSample = errors.New("uncertainty: degenerate bootstrap sample")
)
