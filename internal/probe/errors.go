package probe

import "errors"

// Sentinel kinds for probe failures.
var (
	ErrUnhealthy = errors.New("service unhealthy")
	ErrContract  = errors.New("error contract violated")
	ErrFailures  = errors.New("predictions failed")
)
