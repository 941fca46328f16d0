package artifact

import "errors"

// Sentinel kinds for artifact persistence.
var (
	ErrFormat      = errors.New("unsupported artifact format")
	ErrCorrupt     = errors.New("corrupt artifact")
	ErrUnsupported = errors.New("unsupported regressor")
)
