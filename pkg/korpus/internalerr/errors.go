package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrUnknownStage        = errors.New("unknown stage")
	ErrMissingInput        = errors.New("missing input")
	ErrTokenNotFound       = errors.New("token not in dictionary")
	ErrMalformedDictionary = errors.New("malformed dictionary")
	ErrResourceMissing     = errors.New("shared resource not attached")
)
