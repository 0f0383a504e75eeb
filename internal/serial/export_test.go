package serial

// NewTestPort exposes the line reader over a fake device.
func NewTestPort(dev interface {
	Read(p []byte) (int, error)
	Close() error
}) *Port {
	return newPort(dev, "test")
}
