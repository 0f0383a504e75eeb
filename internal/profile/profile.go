// Package profile holds calibration profiles and the pure functions that
// derive, format and match them.
package profile

import (
	"fmt"
	"strconv"
	"strings"
)

// BandCount is the fixed number of bands in every profile.
const BandCount = 3

// Band is one applied-torque target with its tolerance range.
type Band struct {
	Target float64
	Low    float64
	High   float64
}

// Contains reports whether v lies inside the band, both ends inclusive.
func (b Band) Contains(v float64) bool {
	return b.Low <= v && v <= b.High
}

// Midpoint returns the center of the tolerance range.
func (b Band) Midpoint() float64 {
	return (b.Low + b.High) / 2
}

// Range returns the band's range string, e.g. "86.4 - 93.6".
func (b Band) Range() string {
	return FormatRange(b.Low, b.High)
}

// Profile is a stored calibration definition.
type Profile struct {
	ID        int64
	MaxTorque float64
	Unit      string
	Category  string
	Bands     [BandCount]Band
}

// Targets returns the applied-torque targets of the three bands.
func (p Profile) Targets() [BandCount]float64 {
	var out [BandCount]float64
	for i, b := range p.Bands {
		out[i] = b.Target
	}

	return out
}

func (p Profile) String() string {
	return fmt.Sprintf("%s %s - %s", strconv.FormatFloat(p.MaxTorque, 'f', -1, 64), p.Unit, p.Category)
}

// BandLabel returns the persistence label for the 1-based band index. It
// names the profile column holding the band's range string.
func BandLabel(index int) string {
	return "allowance" + strconv.Itoa(index)
}

// FormatRange renders a tolerance range with one decimal per bound.
func FormatRange(low, high float64) string {
	return strconv.FormatFloat(low, 'f', 1, 64) + " - " + strconv.FormatFloat(high, 'f', 1, 64)
}

// ParseRange parses a "low - high" range string. Anything that does not
// split into exactly two numbers is rejected.
func ParseRange(s string) (low, high float64, ok bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return 0, 0, false
	}

	low, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	high, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}

	return low, high, true
}
