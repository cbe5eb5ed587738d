package domain

import "errors"

// Sentinel errors returned by repositories. Services branch on these with
// errors.Is and translate them at the HTTP boundary.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)
