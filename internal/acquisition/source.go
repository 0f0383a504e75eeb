package acquisition

import (
	"bufio"
	"io"
	"strings"
)

// LineSource is a line-oriented stream such as a serial device.
//
// ReadLine returns ok=false with a nil error when no complete line arrived
// within the source's own read timeout, which lets the loop check for
// cancellation. io.EOF marks the end of a finite stream.
type LineSource interface {
	ReadLine() (line string, ok bool, err error)
	Close() error
}

// OpenFunc opens a LineSource for one session.
type OpenFunc func() (LineSource, error)

type readerSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

// NewReaderSource wraps r as a LineSource. Reads block until a line or the
// end of input, so it suits replaying captured device output from files or
// pipes rather than live devices.
func NewReaderSource(r io.Reader) LineSource {
	rs := &readerSource{scanner: bufio.NewScanner(r)}
	if c, ok := r.(io.Closer); ok {
		rs.closer = c
	}

	return rs
}

func (s *readerSource) ReadLine() (string, bool, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", false, err
		}
		return "", false, io.EOF
	}

	return DecodeLine(s.scanner.Bytes()), true, nil
}

func (s *readerSource) Close() error {
	if s.closer == nil {
		return nil
	}

	return s.closer.Close()
}

// DecodeLine turns raw device bytes into trimmed text, replacing invalid
// UTF-8 sequences.
func DecodeLine(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), "�"))
}
