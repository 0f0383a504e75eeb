package profile

import "github.com/shopspring/decimal"

const (
	smallTargetThreshold = 10
	smallTargetTolerance = 0.06
	targetTolerance      = 0.04
)

// TargetFactors are the fractions of rated max torque used for the three
// applied-torque targets.
var TargetFactors = [BandCount]float64{0.916, 0.583, 0.333}

// ComputeTargets derives the applied-torque targets from a rated max torque.
// Each target is rounded to the nearest multiple of 10, ties to even.
// Non-positive input is passed through without validation.
func ComputeTargets(maxTorque float64) [BandCount]float64 {
	var targets [BandCount]float64
	for i, f := range TargetFactors {
		targets[i] = decimal.NewFromFloat(maxTorque * f).RoundBank(-1).InexactFloat64()
	}

	return targets
}

// ComputeBand returns the tolerance range for an applied-torque target:
// 6% below 10, 4% otherwise, each bound rounded half away from zero to
// one decimal.
func ComputeBand(target float64) (low, high float64) {
	tol := targetTolerance
	if target < smallTargetThreshold {
		tol = smallTargetTolerance
	}

	low = decimal.NewFromFloat(target * (1 - tol)).Round(1).InexactFloat64()
	high = decimal.NewFromFloat(target * (1 + tol)).Round(1).InexactFloat64()

	return low, high
}

// NewBand builds a Band around target using ComputeBand.
func NewBand(target float64) Band {
	low, high := ComputeBand(target)

	return Band{Target: target, Low: low, High: high}
}

// BandsFromTargets builds the three bands for explicit targets, as when a
// profile's targets are edited by hand.
func BandsFromTargets(targets [BandCount]float64) [BandCount]Band {
	var bands [BandCount]Band
	for i, t := range targets {
		bands[i] = NewBand(t)
	}

	return bands
}

// Generate derives a complete, unsaved profile from its rated max torque.
func Generate(maxTorque float64, unit, category string) Profile {
	return Profile{
		MaxTorque: maxTorque,
		Unit:      unit,
		Category:  category,
		Bands:     BandsFromTargets(ComputeTargets(maxTorque)),
	}
}
