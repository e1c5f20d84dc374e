package modelfree

import "errors"

var (
	ErrNoSuchModel = errors.New("modelfree: no such model")
	ErrNucleus     = errors.New("modelfree: unsupported nucleus pair")
	ErrTauM        = errors.New("modelfree: overall correlation time too short")
	ErrData        = errors.New("modelfree: invalid relaxation data")
)
