package fit

import "errors"

var (
	ErrGuesses    = errors.New("fit: wrong number of guesses")
	ErrNoValidFit = errors.New("fit: no equation gave a valid fit")
)
