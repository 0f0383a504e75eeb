package acquisition

import "codeberg.org/mutker/torquectl/internal/errors"

const (
	// ErrSourceOpen is returned by Start when the line source cannot be opened.
	ErrSourceOpen = errors.ErrorCode("acquisition_source_open_failed")
	// ErrSourceRead is reported once on the error channel when a read fails
	// mid-stream.
	ErrSourceRead = errors.ErrorCode("acquisition_source_read_failed")
	// ErrInvalidSetup covers a missing opener or aggregator.
	ErrInvalidSetup = errors.ErrorCode("acquisition_invalid_setup")
)
