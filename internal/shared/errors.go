package shared

import "errors"

var (
	// ErrNotFound indicates the referenced resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness violation (e.g. SKU already taken).
	ErrDuplicate = errors.New("duplicate entry")
	// ErrUnauthorized indicates the request carries no acting user.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation indicates a rejected input.
	ErrValidation = errors.New("validation failed")
)
