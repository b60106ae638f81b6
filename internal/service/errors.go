package service

import "errors"

// Every caller-facing failure from the flag service wraps one of these
// sentinels; handlers match with errors.Is and map to transport codes.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrAccessDenied     = errors.New("access denied")
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
)
