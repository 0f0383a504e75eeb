package profile

import (
	"math"

	"codeberg.org/mutker/torquectl/internal/units"
)

const (
	matchRelativeTolerance = 0.10
	matchMinTolerance      = 2.0 // Nm
)

// Matcher selects the stored profile that fits an externally supplied
// rated torque.
type Matcher struct {
	conv *units.Converter
}

// NewMatcher returns a Matcher using conv, or the default synonym sets
// when conv is nil.
func NewMatcher(conv *units.Converter) *Matcher {
	if conv == nil {
		conv = units.NewConverter(units.DefaultSynonyms())
	}

	return &Matcher{conv: conv}
}

// FindProfile returns the index of the first profile, in the given order,
// whose normalized max torque lies within max(10%, 2 Nm) of the normalized
// input. The first qualifying profile wins even if a later one is closer.
func (m *Matcher) FindProfile(value float64, unitText string, profiles []Profile) (int, bool) {
	inputNm := m.conv.Normalize(value, unitText)
	tolerance := math.Max(inputNm*matchRelativeTolerance, matchMinTolerance)

	for i, p := range profiles {
		profileNm := m.conv.Normalize(p.MaxTorque, p.Unit)
		if math.Abs(profileNm-inputNm) <= tolerance {
			return i, true
		}
	}

	return -1, false
}
