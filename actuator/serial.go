package actuator

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// DefaultBaudRate matches the servo firmware's serial console.
const DefaultBaudRate = 115200

// Serial writes commands as "pan,tilt\n" lines to a serial link.
type Serial struct {
	mu   sync.Mutex
	port io.WriteCloser
}

var _ Dispatcher = (*Serial)(nil)

// OpenSerial opens a serial port in 8N1 mode.
//
// Arguments:
//   - path: Device path, e.g. /dev/ttyUSB0.
//   - baud: Baud rate; 0 uses DefaultBaudRate.
//
// Returns:
//   - *Serial: The dispatcher owning the port.
//   - error: If the port cannot be opened.
func OpenSerial(path string, baud int) (*Serial, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "opening serial port %s", path)
	}
	return NewSerial(port), nil
}

// NewSerial wraps an already open port.
func NewSerial(port io.WriteCloser) *Serial {
	return &Serial{port: port}
}

// Dispatch writes one command line.
func (s *Serial) Dispatch(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return ErrClosed
	}
	if _, err := fmt.Fprintf(s.port, "%d,%d\n", cmd.Pan, cmd.Tilt); err != nil {
		return errors.Wrap(err, "writing servo command")
	}
	return nil
}

// Close closes the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
