// Package session tracks the readings accepted per band during one
// acquisition session against one calibration profile.
package session

import (
	"sync"
	"time"

	"codeberg.org/mutker/torquectl/internal/logger"
	"codeberg.org/mutker/torquectl/internal/profile"
	"codeberg.org/mutker/torquectl/internal/tolerance"
	"github.com/google/uuid"
)

// MaxSamplesPerBand caps the accepted readings held for each band.
const MaxSamplesPerBand = 5

// Reading is an accepted raw reading handed to the persistence sink.
type Reading struct {
	SessionID string
	Value     float64
	ProfileID int64
	BandLabel string
	Range     string
	At        time.Time
}

// Sink records accepted readings. It is fire-and-forget: implementations
// handle their own failures.
type Sink interface {
	RecordReading(r Reading)
}

// SummaryRow is the per-band view of a session.
type SummaryRow struct {
	BandIndex int
	Target    float64
	Range     string
	Tests     []float64
}

type nopSink struct{}

func (nopSink) RecordReading(Reading) {}

// Aggregator accumulates accepted readings keyed by band range string.
// Bands sharing a range string share a key.
type Aggregator struct {
	mu        sync.Mutex
	sessionID string
	profile   profile.Profile
	samples   map[string][]float64
	sink      Sink
	now       func() time.Time
}

// NewAggregator starts a session for p. A nil sink discards readings.
func NewAggregator(p profile.Profile, sink Sink) *Aggregator {
	if sink == nil {
		sink = nopSink{}
	}

	a := &Aggregator{
		profile: p,
		sink:    sink,
		now:     time.Now,
	}
	a.resetLocked()

	return a
}

// Accept appends value to the fit's band unless that band already holds
// MaxSamplesPerBand readings. Accepted readings are passed to the sink.
func (a *Aggregator) Accept(fit tolerance.Fit, value float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := fit.Range()
	if len(a.samples[key]) >= MaxSamplesPerBand {
		logger.Debug().
			Str("range", key).
			Float64("value", value).
			Msg("Band full, reading dropped")
		return false
	}

	a.samples[key] = append(a.samples[key], value)
	a.sink.RecordReading(Reading{
		SessionID: a.sessionID,
		Value:     value,
		ProfileID: a.profile.ID,
		BandLabel: fit.Label(),
		Range:     key,
		At:        a.now(),
	})

	return true
}

// Reset clears all bands and starts a new session against the same profile.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

// SetProfile switches the active profile and starts a new session.
func (a *Aggregator) SetProfile(p profile.Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profile = p
	a.resetLocked()
}

func (a *Aggregator) resetLocked() {
	a.sessionID = uuid.NewString()
	a.samples = make(map[string][]float64, profile.BandCount)
}

// SessionID identifies the current session.
func (a *Aggregator) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// Profile returns the active profile.
func (a *Aggregator) Profile() profile.Profile {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.profile
}

// Samples returns a copy of the readings accepted for a range string.
func (a *Aggregator) Samples(rangeStr string) []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]float64, len(a.samples[rangeStr]))
	copy(out, a.samples[rangeStr])

	return out
}

// Complete reports whether every band holds MaxSamplesPerBand readings.
func (a *Aggregator) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range a.profile.Bands {
		if len(a.samples[b.Range()]) < MaxSamplesPerBand {
			return false
		}
	}

	return true
}

// Summary returns one row per band of the active profile, in band order.
func (a *Aggregator) Summary() []SummaryRow {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows := make([]SummaryRow, 0, profile.BandCount)
	for i, b := range a.profile.Bands {
		key := b.Range()
		tests := make([]float64, len(a.samples[key]))
		copy(tests, a.samples[key])
		rows = append(rows, SummaryRow{
			BandIndex: i + 1,
			Target:    b.Target,
			Range:     key,
			Tests:     tests,
		})
	}

	return rows
}
