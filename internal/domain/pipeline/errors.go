package pipeline

import "errors"

// Sentinel kinds for fitting and inference errors.
var (
	ErrEmpty     = errors.New("empty training data")
	ErrDimension = errors.New("dimension mismatch")
	ErrNotFitted = errors.New("model is not fitted")
	ErrSingular  = errors.New("singular system")
	ErrNonFinite = errors.New("non-finite value")
)
