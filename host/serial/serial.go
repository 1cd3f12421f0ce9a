package serial

import (
	"io"
)

// Port is a byte stream to a controller. Implementations:
// - native serial (github.com/tarm/serial)
// - in-memory pipes in tests
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input.
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate. The controller console runs at 460800; USB CDC ignores it.
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// Controller console defaults
const (
	DefaultBaud        = 460800
	DefaultReadTimeout = 100
)

// DefaultConfig returns the console settings of a strobe controller on device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: DefaultReadTimeout,
	}
}
