package profile_test

import (
	"math"
	"testing"

	"codeberg.org/mutker/torquectl/internal/profile"
	"github.com/stretchr/testify/assert"
)

func TestComputeTargets(t *testing.T) {
	assert.Equal(t, [3]float64{90, 60, 30}, profile.ComputeTargets(100))
	assert.Equal(t, [3]float64{180, 120, 70}, profile.ComputeTargets(200))
	assert.Equal(t, [3]float64{0, 0, 0}, profile.ComputeTargets(0))
	assert.Equal(t, [3]float64{-90, -60, -30}, profile.ComputeTargets(-100))
}

func TestComputeTargetsAreRoundedMultiplesOfTen(t *testing.T) {
	for _, maxTorque := range []float64{12, 47.5, 100, 135.582, 250, 333, 1000, 2712} {
		targets := profile.ComputeTargets(maxTorque)
		for i, target := range targets {
			raw := maxTorque * profile.TargetFactors[i]
			assert.Zero(t, math.Mod(target, 10), "target %v for max %v", target, maxTorque)
			assert.LessOrEqual(t, math.Abs(target-raw), 5.0, "target %v for raw %v", target, raw)
		}
	}
}

func TestComputeBand(t *testing.T) {
	tests := []struct {
		target    float64
		low, high float64
	}{
		{target: 90, low: 86.4, high: 93.6},
		{target: 60, low: 57.6, high: 62.4},
		{target: 30, low: 28.8, high: 31.2},
		{target: 10, low: 9.6, high: 10.4},
		{target: 5, low: 4.7, high: 5.3},
		{target: 0, low: 0, high: 0},
	}

	for _, tt := range tests {
		low, high := profile.ComputeBand(tt.target)
		assert.Equal(t, tt.low, low, "low for %v", tt.target)
		assert.Equal(t, tt.high, high, "high for %v", tt.target)
	}
}

func TestComputeBandMatchesToleranceRule(t *testing.T) {
	for _, target := range []float64{1, 3, 7, 9.5, 10, 20, 180, 1240} {
		tol := 0.04
		if target < 10 {
			tol = 0.06
		}
		low, high := profile.ComputeBand(target)
		assert.InDelta(t, target*(1-tol), low, 0.05+1e-9)
		assert.InDelta(t, target*(1+tol), high, 0.05+1e-9)
	}
}

func TestGenerate(t *testing.T) {
	p := profile.Generate(100, "Nm", "Wrench")

	assert.Equal(t, int64(0), p.ID)
	assert.Equal(t, "Nm", p.Unit)
	assert.Equal(t, "Wrench", p.Category)
	assert.Equal(t, [3]float64{90, 60, 30}, p.Targets())
	assert.Equal(t, "86.4 - 93.6", p.Bands[0].Range())
	assert.Equal(t, "57.6 - 62.4", p.Bands[1].Range())
	assert.Equal(t, "28.8 - 31.2", p.Bands[2].Range())
	assert.Equal(t, "100 Nm - Wrench", p.String())
}
