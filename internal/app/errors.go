package service

import "errors"

// Sentinel kinds for service failures.
var (
	ErrModelLoad  = errors.New("model load failed")
	ErrNotStarted = errors.New("service not started")
	ErrInference  = errors.New("inference failed")
)
