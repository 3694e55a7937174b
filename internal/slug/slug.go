package slug

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
)

// DefaultLength matches the width of slugs handed out when the caller does
// not supply one.
const DefaultLength = 8

// MaxLength is bounded by the slug column width in storage.
const MaxLength = 20

var (
	ErrEmpty        = errors.New("slug must not be empty")
	ErrTooLong      = errors.New("slug must be at most 20 characters")
	ErrInvalidChars = errors.New("slug may only contain letters, numbers, hyphens, and underscores")
	ErrReserved     = errors.New("slug is reserved")
)

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Slugs equal to a route prefix would shadow the API endpoints.
var reserved = map[string]bool{
	"api":    true,
	"health": true,
}

// Generate returns a cryptographically random hex string truncated to length
// characters. Callers must still check the result against storage for
// collisions; uniqueness is not guaranteed here.
func Generate(length int) string {
	if length <= 0 {
		length = DefaultLength
	}
	buf := make([]byte, length)
	// rand.Read never fails on supported platforms.
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)[:length]
}

// Validate checks a caller-supplied custom slug. Generated slugs are always
// valid by construction and skip this.
func Validate(s string) error {
	if s == "" {
		return ErrEmpty
	}
	if len(s) > MaxLength {
		return ErrTooLong
	}
	if !slugPattern.MatchString(s) {
		return ErrInvalidChars
	}
	if reserved[s] {
		return ErrReserved
	}
	return nil
}
