package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrInternal   = errors.New("internal server error")
)

// Error discriminators written in the "error" field of every failure body.
const (
	codeValidation = "validation_error"
	codeBadRequest = "bad_request"
	codeInternal   = "internal_error"
)
