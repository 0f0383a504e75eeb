package session_test

import (
	"sync"
	"testing"

	"codeberg.org/mutker/torquectl/internal/profile"
	"codeberg.org/mutker/torquectl/internal/session"
	"codeberg.org/mutker/torquectl/internal/tolerance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	readings []session.Reading
}

func (s *recordingSink) RecordReading(r session.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
}

func testProfile() profile.Profile {
	p := profile.Generate(100, "Nm", "Wrench")
	p.ID = 42
	return p
}

func TestAcceptCapsAtFive(t *testing.T) {
	sink := &recordingSink{}
	p := testProfile()
	agg := session.NewAggregator(p, sink)

	fits := tolerance.Classify(90, p.Bands)
	require.Len(t, fits, 1)

	for i := 0; i < 5; i++ {
		assert.True(t, agg.Accept(fits[0], 90), "accept %d", i+1)
	}
	assert.False(t, agg.Accept(fits[0], 90), "sixth reading must be rejected")

	assert.Len(t, agg.Samples("86.4 - 93.6"), session.MaxSamplesPerBand)
	assert.Len(t, sink.readings, 5, "rejected reading must not reach the sink")
}

func TestAcceptRecordsReading(t *testing.T) {
	sink := &recordingSink{}
	p := testProfile()
	agg := session.NewAggregator(p, sink)

	fit := tolerance.Classify(61, p.Bands)[0]
	require.True(t, agg.Accept(fit, 61))

	require.Len(t, sink.readings, 1)
	r := sink.readings[0]
	assert.Equal(t, 61.0, r.Value)
	assert.Equal(t, int64(42), r.ProfileID)
	assert.Equal(t, "allowance2", r.BandLabel)
	assert.Equal(t, "57.6 - 62.4", r.Range)
	assert.Equal(t, agg.SessionID(), r.SessionID)
	assert.False(t, r.At.IsZero())
}

func TestResetClearsBandsAndStartsNewSession(t *testing.T) {
	p := testProfile()
	agg := session.NewAggregator(p, nil)
	fit := tolerance.Classify(30, p.Bands)[0]

	for i := 0; i < 5; i++ {
		agg.Accept(fit, 30)
	}
	before := agg.SessionID()

	agg.Reset()

	assert.Empty(t, agg.Samples(fit.Range()))
	assert.NotEqual(t, before, agg.SessionID())
	assert.True(t, agg.Accept(fit, 30))
}

func TestSetProfileResets(t *testing.T) {
	p := testProfile()
	agg := session.NewAggregator(p, nil)
	agg.Accept(tolerance.Classify(90, p.Bands)[0], 90)

	other := profile.Generate(200, "Nm", "Multiplier")
	agg.SetProfile(other)

	assert.Equal(t, other, agg.Profile())
	for _, row := range agg.Summary() {
		assert.Empty(t, row.Tests)
	}
}

func TestOverlappingFitsAcceptedIndependently(t *testing.T) {
	p := profile.Profile{ID: 1, Bands: [3]profile.Band{
		{Target: 10, Low: 5, High: 15},
		{Target: 12, Low: 10, High: 14},
		{Target: 20, Low: 19, High: 21},
	}}
	agg := session.NewAggregator(p, nil)

	for _, f := range tolerance.Classify(11, p.Bands) {
		assert.True(t, agg.Accept(f, 11))
	}

	assert.Equal(t, []float64{11}, agg.Samples("5.0 - 15.0"))
	assert.Equal(t, []float64{11}, agg.Samples("10.0 - 14.0"))
}

func TestSummaryAndComplete(t *testing.T) {
	p := testProfile()
	agg := session.NewAggregator(p, nil)
	assert.False(t, agg.Complete())

	for _, v := range []float64{90, 60, 30} {
		fit := tolerance.Classify(v, p.Bands)[0]
		for i := 0; i < session.MaxSamplesPerBand; i++ {
			agg.Accept(fit, v)
		}
	}

	assert.True(t, agg.Complete())
	rows := agg.Summary()
	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].BandIndex)
	assert.Equal(t, 90.0, rows[0].Target)
	assert.Equal(t, "86.4 - 93.6", rows[0].Range)
	assert.Equal(t, []float64{90, 90, 90, 90, 90}, rows[0].Tests)
	assert.Equal(t, []float64{30, 30, 30, 30, 30}, rows[2].Tests)
}
