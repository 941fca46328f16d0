package trainer

import "errors"

// Sentinel kinds for training failures.
var (
	ErrVariant  = errors.New("unknown trainer variant")
	ErrDataset  = errors.New("load dataset")
	ErrFit      = errors.New("fit candidate")
	ErrEvaluate = errors.New("evaluate candidate")
	ErrPersist  = errors.New("persist outputs")
)
