package serial_test

import (
	"context"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/mutker/torquectl/internal/acquisition"
	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/profile"
	"codeberg.org/mutker/torquectl/internal/serial"
	"codeberg.org/mutker/torquectl/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice returns one chunk per Read; an empty chunk simulates a timeout.
type fakeDevice struct {
	chunks []string
	err    error
	closes int
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	if len(d.chunks) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		return 0, nil
	}
	c := d.chunks[0]
	n := copy(p, c)
	if n < len(c) {
		d.chunks[0] = c[n:]
	} else {
		d.chunks = d.chunks[1:]
	}
	return n, nil
}

func (d *fakeDevice) Close() error {
	d.closes++
	return nil
}

func TestReadLineAssemblesChunks(t *testing.T) {
	dev := &fakeDevice{chunks: []string{"HI 30", "1.5 ft.lb\r\n9", "0.2\n"}}
	p := serial.NewTestPort(dev)

	line, ok, err := p.ReadLine()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "HI 301.5 ft.lb", line)

	line, ok, err = p.ReadLine()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "90.2", line)
}

func TestReadLineTimeoutKeepsPartialData(t *testing.T) {
	dev := &fakeDevice{chunks: []string{"12.", ""}}
	p := serial.NewTestPort(dev)

	_, ok, err := p.ReadLine()
	require.NoError(t, err)
	assert.False(t, ok, "timeout without newline yields no line")

	dev.chunks = []string{"5\n"}
	line, ok, err := p.ReadLine()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "12.5", line)
}

func TestReadLineOverlongLineIsFlushed(t *testing.T) {
	long := strings.Repeat("x", 5000)
	dev := &fakeDevice{chunks: []string{long[:256], long[256:]}}
	p := serial.NewTestPort(dev)

	var got string
	for i := 0; i < 40 && got == ""; i++ {
		line, ok, err := p.ReadLine()
		require.NoError(t, err)
		if ok {
			got = line
		}
	}
	assert.NotEmpty(t, got)
}

func TestReadLineDeviceError(t *testing.T) {
	dev := &fakeDevice{err: io.ErrUnexpectedEOF}
	p := serial.NewTestPort(dev)

	_, ok, err := p.ReadLine()
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errors.HasCode(err, serial.ErrReadFailed))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCloseIsIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	p := serial.NewTestPort(dev)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, dev.closes)

	_, _, err := p.ReadLine()
	assert.True(t, errors.HasCode(err, serial.ErrAlreadyClosed))
}

func TestOpenRequiresPort(t *testing.T) {
	_, err := serial.Open(serial.Config{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, serial.ErrInvalidPort))
}

func TestOpenFailureKeepsCause(t *testing.T) {
	cfg := serial.Config{Port: filepath.Join(t.TempDir(), "ttyUSB9")}

	_, err := serial.Open(cfg)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, serial.ErrOpenFailed))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), cfg.Port)

	_, err = acquisition.Start(context.Background(), acquisition.Config{
		Open:       serial.Opener(cfg),
		Aggregator: session.NewAggregator(profile.Generate(100, "Nm", "Wrench"), nil),
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, acquisition.ErrSourceOpen))
	assert.True(t, errors.HasCode(err, serial.ErrOpenFailed))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
