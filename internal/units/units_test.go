package units_test

import (
	"testing"

	"codeberg.org/mutker/torquectl/internal/units"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeDefaults(t *testing.T) {
	c := units.NewConverter(units.Synonyms{})

	assert.InDelta(t, 135.582, c.Normalize(100, "ft-lb"), 1e-9)
	assert.InDelta(t, 11.3, c.Normalize(100, "in-lb"), 1e-9)
	assert.Equal(t, 100.0, c.Normalize(100, "Nm"))
	assert.Equal(t, 100.0, c.Normalize(100, "bogus"))
}

func TestNormalizeIsCaseAndSpaceInsensitive(t *testing.T) {
	c := units.NewConverter(units.DefaultSynonyms())

	assert.InDelta(t, 13.5582, c.Normalize(10, "  FT/LBS "), 1e-9)
	assert.Equal(t, units.InchPound, c.Family("In.Lb"))
	assert.Equal(t, units.NewtonMeter, c.Family("N.M."))
	assert.Equal(t, units.Unknown, c.Family(""))
}

func TestCustomSynonymsReplaceDefaults(t *testing.T) {
	c := units.NewConverter(units.Synonyms{
		FtLb: []string{"LBF-FT", " "},
	})

	assert.Equal(t, units.FootPound, c.Family("lbf-ft"))
	// ft-lb is no longer a foot-pound token and falls back to Nm semantics
	assert.Equal(t, units.Unknown, c.Family("ft-lb"))
	assert.Equal(t, 50.0, c.Normalize(50, "ft-lb"))
	// untouched sets keep their defaults
	assert.Equal(t, units.InchPound, c.Family("in-lb"))
}

func TestBlankSetFallsBackToDefault(t *testing.T) {
	c := units.NewConverter(units.Synonyms{Nm: []string{"", "  "}})

	assert.Equal(t, units.NewtonMeter, c.Family("nm"))
}

func TestFamilyString(t *testing.T) {
	assert.Equal(t, "ft-lb", units.FootPound.String())
	assert.Equal(t, "Nm", units.NewtonMeter.String())
	assert.Equal(t, "unknown", units.Unknown.String())
}
