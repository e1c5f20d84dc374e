package equation

import "errors"

var (
	// ErrNoSuchEquation is returned by Lookup for an unknown name.
	ErrNoSuchEquation = errors.New("equation: no such equation")

	// ErrNoPeaks is returned when the peak guesser finds no usable peak.
	ErrNoPeaks = errors.New("equation: no peaks found")
)
