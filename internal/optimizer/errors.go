package optimizer

import "errors"

var (
	// ErrFitFailed reports that a minimization did not produce a usable
	// point: the method failed, panicked or never evaluated a finite value.
	ErrFitFailed = errors.New("optimizer: fit failed")

	// ErrBounds reports bounds of the wrong length or with lower >= upper.
	ErrBounds = errors.New("optimizer: invalid bounds")

	// ErrMethod reports an unknown method name.
	ErrMethod = errors.New("optimizer: unknown method")
)
