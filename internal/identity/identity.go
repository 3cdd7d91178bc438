// Package identity generates and validates the immutable sync identifiers
// used as the sole key for cross-device entity matching.
package identity

import (
	"fmt"
	"strings"

	"github.com/dkarpov/papersync/internal/common"
	"github.com/google/uuid"
)

// Generate produces a new identifier: a lowercase canonical UUIDv4 string.
func Generate() string {
	return uuid.NewString()
}

// IsValid reports whether s has exact UUIDv4 structure: 36 characters,
// hyphens at positions 8/13/18/23, version nibble '4' and variant nibble
// in {8, 9, a, b}. Both cases are accepted; use Normalize for storage.
func IsValid(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i := 0; i < 36; i++ {
		c := s[i]
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			if !isHex(c) {
				return false
			}
		}
	}
	if s[14] != '4' {
		return false
	}
	switch s[19] {
	case '8', '9', 'a', 'b', 'A', 'B':
		return true
	}
	return false
}

// Normalize lower-cases a valid identifier into canonical form.
// The caller is expected to have validated s first.
func Normalize(s string) string {
	return strings.ToLower(s)
}

// ValidateOrFail returns the normalized identifier, or an error wrapping
// common.ErrInvalidIdentifier that names the offending value.
func ValidateOrFail(s string) (string, error) {
	if !IsValid(s) {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidIdentifier, s)
	}
	return Normalize(s), nil
}

func isHex(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'f':
		return true
	case c >= 'A' && c <= 'F':
		return true
	}
	return false
}
