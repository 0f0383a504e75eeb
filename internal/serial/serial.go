// Package serial reads newline-terminated torque readings from a serial
// device.
package serial

import (
	"bytes"
	"sync"
	"time"

	"codeberg.org/mutker/torquectl/internal/acquisition"
	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/logger"
	bugserial "go.bug.st/serial"
)

const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = time.Second

	readChunkSize = 256
	maxLineLength = 4096
)

// Config describes the device to open.
type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}

	return c
}

// device is the subset of a serial port the line reader needs.
type device interface {
	Read(p []byte) (int, error)
	Close() error
}

// Port is a LineSource backed by a serial device.
type Port struct {
	dev     device
	name    string
	pending []byte
	chunk   []byte
	closed  bool
	mu      sync.Mutex
}

var _ acquisition.LineSource = (*Port)(nil)

// Open opens the configured device at 8N1 with the configured read timeout.
func Open(cfg Config) (*Port, error) {
	errFactory := errors.New()
	cfg = cfg.withDefaults()

	if cfg.Port == "" {
		return nil, errFactory.New(ErrInvalidPort)
	}

	dev, err := bugserial.Open(cfg.Port, &bugserial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   bugserial.NoParity,
		StopBits: bugserial.OneStopBit,
	})
	if err != nil {
		return nil, errFactory.Wrap(ErrOpenFailed, err).
			WithMessage("Failed to open serial port " + cfg.Port)
	}

	if err := dev.SetReadTimeout(cfg.ReadTimeout); err != nil {
		dev.Close()
		return nil, errFactory.Wrap(ErrConfigFailed, err)
	}

	logger.Debug().
		Str("port", cfg.Port).
		Int("baud", cfg.BaudRate).
		Dur("read_timeout", cfg.ReadTimeout).
		Msg("Serial port opened")

	return newPort(dev, cfg.Port), nil
}

// Opener returns an acquisition.OpenFunc for cfg.
func Opener(cfg Config) acquisition.OpenFunc {
	return func() (acquisition.LineSource, error) {
		p, err := Open(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func newPort(dev device, name string) *Port {
	return &Port{
		dev:   dev,
		name:  name,
		chunk: make([]byte, readChunkSize),
	}
}

// ReadLine returns the next complete line. A read that times out without
// completing a line returns ok=false and keeps partial data for the next call.
func (p *Port) ReadLine() (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	errFactory := errors.New()
	if p.closed {
		return "", false, errFactory.New(ErrAlreadyClosed)
	}

	for {
		if line, ok := p.takeLine(); ok {
			return line, true, nil
		}

		n, err := p.dev.Read(p.chunk)
		if err != nil {
			return "", false, errFactory.Wrap(ErrReadFailed, err)
		}
		if n == 0 {
			return "", false, nil
		}
		p.pending = append(p.pending, p.chunk[:n]...)
	}
}

func (p *Port) takeLine() (string, bool) {
	idx := bytes.IndexByte(p.pending, '\n')
	if idx < 0 {
		if len(p.pending) < maxLineLength {
			return "", false
		}
		idx = len(p.pending)
	}

	raw := p.pending[:idx]
	if idx < len(p.pending) {
		p.pending = p.pending[idx+1:]
	} else {
		p.pending = p.pending[:0]
	}

	return acquisition.DecodeLine(raw), true
}

// Close releases the device. Closing twice is a no-op.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.dev.Close(); err != nil {
		return errors.New().Wrap(ErrCloseFailed, err)
	}

	logger.Debug().Str("port", p.name).Msg("Serial port closed")

	return nil
}

// List returns the names of the serial ports present on the system.
func List() ([]string, error) {
	ports, err := bugserial.GetPortsList()
	if err != nil {
		return nil, errors.New().Wrap(ErrListFailed, err)
	}

	return ports, nil
}
