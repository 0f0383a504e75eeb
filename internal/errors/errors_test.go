package errors_test

import (
	"io"
	"testing"

	"codeberg.org/mutker/torquectl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	err := errors.New().Wrap(errors.ErrRunFailed, io.ErrUnexpectedEOF)

	require.Error(t, err)
	assert.Equal(t, errors.ErrRunFailed, err.Code())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "Acquisition run failed")
}

func TestUnknownCodeFallsBackToCode(t *testing.T) {
	err := errors.New().New(errors.ErrorCode("custom_code"))

	assert.Equal(t, "custom_code", err.Error())
}

func TestWithDataAndMessage(t *testing.T) {
	err := errors.New().WithData(errors.ErrInvalidBaudRate, -1).WithMessage("baud must be positive")

	assert.Equal(t, "baud must be positive: -1", err.Error())
	assert.Equal(t, -1, err.GetData())
}

func TestHasCodeFollowsChain(t *testing.T) {
	inner := errors.New().New(errors.ErrNoMatch)
	outer := errors.New().Wrap(errors.ErrRunFailed, inner)

	assert.True(t, errors.HasCode(outer, errors.ErrRunFailed))
	assert.True(t, errors.HasCode(outer, errors.ErrNoMatch))
	assert.False(t, errors.HasCode(outer, errors.ErrNoProfile))
	assert.False(t, errors.HasCode(io.EOF, errors.ErrRunFailed))
}
