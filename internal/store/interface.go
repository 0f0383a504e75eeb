package store

import (
	"context"

	"codeberg.org/mutker/torquectl/internal/profile"
	"codeberg.org/mutker/torquectl/internal/session"
)

// ProfileStore is the read side of profile storage used for selection and
// matching.
type ProfileStore interface {
	ListProfiles(ctx context.Context) ([]profile.Profile, error)
	GetProfile(ctx context.Context, id int64) (profile.Profile, error)
}

// ProfileWriter edits stored profiles.
type ProfileWriter interface {
	AddProfile(ctx context.Context, p profile.Profile) (int64, error)
	UpdateProfile(ctx context.Context, p profile.Profile) error
	DeleteProfile(ctx context.Context, id int64) error
}

// SummaryRecorder persists the per-band outcome of a finished session.
type SummaryRecorder interface {
	RecordSummary(ctx context.Context, sessionID string, profileID int64, rows []session.SummaryRow) error
}

var (
	_ ProfileStore    = (*Repository)(nil)
	_ ProfileWriter   = (*Repository)(nil)
	_ SummaryRecorder = (*Repository)(nil)
	_ session.Sink    = (*Repository)(nil)
)
