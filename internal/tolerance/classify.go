// Package tolerance classifies torque readings against a profile's bands.
package tolerance

import (
	"math"
	"sort"

	"codeberg.org/mutker/torquectl/internal/profile"
)

// Fit is a reading that landed inside one band's tolerance range.
type Fit struct {
	// BandIndex is 1-based.
	BandIndex int
	Band      profile.Band
	// Distance is the absolute distance from the reading to the band midpoint.
	Distance float64
}

// Range returns the range string of the matched band.
func (f Fit) Range() string {
	return f.Band.Range()
}

// Label returns the persistence label of the matched band.
func (f Fit) Label() string {
	return profile.BandLabel(f.BandIndex)
}

// Classify returns the bands that value fits, closest midpoint first. Ties
// keep band order. An empty result is a normal outcome.
func Classify(value float64, bands [profile.BandCount]profile.Band) []Fit {
	var fits []Fit
	for i, b := range bands {
		if !b.Contains(value) {
			continue
		}
		fits = append(fits, Fit{
			BandIndex: i + 1,
			Band:      b,
			Distance:  math.Abs(value - b.Midpoint()),
		})
	}

	sort.SliceStable(fits, func(i, j int) bool {
		return fits[i].Distance < fits[j].Distance
	})

	return fits
}
