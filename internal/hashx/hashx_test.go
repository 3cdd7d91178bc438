package hashx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSum_Deterministic(t *testing.T) {
	d := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := Content{Title: "Passport", Category: "identity", Notes: "renew early", RenewalDate: &d}
	b := Content{Notes: "renew early", RenewalDate: &d, Category: "identity", Title: "Passport"}

	assert.Equal(t, Sum(a), Sum(b), "field assembly order must not matter")
}

func TestSum_DiffersOnAnyField(t *testing.T) {
	base := Content{Title: "Passport", Category: "identity", Notes: "n"}

	changed := []Content{
		{Title: "Visa", Category: "identity", Notes: "n"},
		{Title: "Passport", Category: "travel", Notes: "n"},
		{Title: "Passport", Category: "identity", Notes: "m"},
	}
	for _, c := range changed {
		assert.NotEqual(t, Sum(base), Sum(c))
	}
}

func TestSum_NilDateDistinctFromZeroDate(t *testing.T) {
	zero := time.Time{}
	withZero := Content{Title: "t", RenewalDate: &zero}
	without := Content{Title: "t"}

	assert.NotEqual(t, Sum(withZero), Sum(without))
}

func TestSum_FieldBoundaries(t *testing.T) {
	// "ab" + "c" must not collide with "a" + "bc"
	a := Content{Title: "ab", Category: "c"}
	b := Content{Title: "a", Category: "bc"}
	assert.NotEqual(t, Sum(a), Sum(b))
}

func TestSum_TimezoneNormalized(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	utc := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	local := utc.In(loc)

	a := Content{Title: "t", RenewalDate: &utc}
	b := Content{Title: "t", RenewalDate: &local}
	assert.Equal(t, Sum(a), Sum(b), "same instant must hash identically")
}
