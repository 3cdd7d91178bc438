package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/dkarpov/papersync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ProducesValidLowercaseIDs(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := Generate()
		assert.True(t, IsValid(id), "generated id must be valid: %s", id)
		assert.Equal(t, strings.ToLower(id), id, "generated id must be lowercase")
	}
}

func TestGenerate_NoCollisions(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := Generate()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id generated: %s", id)
		seen[id] = struct{}{}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"canonical v4", "9f2d4c3a-5e6b-4a7d-8c1e-0a1b2c3d4e5f", true},
		{"uppercase v4", "9F2D4C3A-5E6B-4A7D-8C1E-0A1B2C3D4E5F", true},
		{"variant 9", "9f2d4c3a-5e6b-4a7d-9c1e-0a1b2c3d4e5f", true},
		{"variant a", "9f2d4c3a-5e6b-4a7d-ac1e-0a1b2c3d4e5f", true},
		{"variant b", "9f2d4c3a-5e6b-4a7d-bc1e-0a1b2c3d4e5f", true},
		{"empty", "", false},
		{"too short", "9f2d4c3a-5e6b-4a7d-8c1e", false},
		{"too long", "9f2d4c3a-5e6b-4a7d-8c1e-0a1b2c3d4e5f0", false},
		{"wrong version nibble", "9f2d4c3a-5e6b-1a7d-8c1e-0a1b2c3d4e5f", false},
		{"wrong variant nibble", "9f2d4c3a-5e6b-4a7d-7c1e-0a1b2c3d4e5f", false},
		{"missing hyphen", "9f2d4c3a05e6b-4a7d-8c1e-0a1b2c3d4e5f", false},
		{"non-hex char", "9f2d4c3a-5e6b-4a7d-8c1e-0a1b2c3d4g5f", false},
		{"braces form", "{9f2d4c3a-5e6b-4a7d-8c1e-0a1b2c3d4e5f}", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValid(tc.in))
		})
	}
}

func TestValidateOrFail(t *testing.T) {
	id, err := ValidateOrFail("9F2D4C3A-5E6B-4A7D-8C1E-0A1B2C3D4E5F")
	require.NoError(t, err)
	assert.Equal(t, "9f2d4c3a-5e6b-4a7d-8c1e-0a1b2c3d4e5f", id)

	_, err = ValidateOrFail("not-an-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidIdentifier))
	assert.Contains(t, err.Error(), "not-an-id", "error must name the offending value")
}
