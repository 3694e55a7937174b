package service

import "errors"

// The caller-visible error taxonomy. The HTTP layer translates these with
// errors.Is; anything else is an internal error.
var (
	// ErrInvalidInput covers a missing or malformed URL and a malformed
	// custom slug.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSlugConflict means a caller-supplied slug is already taken.
	ErrSlugConflict = errors.New("slug already exists")

	// ErrNotFound covers both an unknown slug and, on the redirect path
	// only, an expired link. The two are indistinguishable to the caller.
	ErrNotFound = errors.New("short link not found")
)
