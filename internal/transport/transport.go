// Package transport provides the byte-oriented, order-preserving outputs
// the formatter writes frames to.
package transport

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

const DefaultBaudRate = 115200

// Transport is a frame sink. Writes are synchronous and may block under
// flow control; the transport preserves byte order.
type Transport interface {
	io.Writer
	io.Closer
}

// Serial is a Transport backed by a serial port.
type Serial struct {
	port serial.Port
}

// OpenSerial opens the serial port at path with the given baud rate
// (8 data bits, no parity, one stop bit).
func OpenSerial(path string, baudRate int) (*Serial, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", path, err)
	}

	return &Serial{port: port}, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *Serial) Close() error {
	return s.port.Close()
}

// Writer adapts any io.Writer into a Transport with a no-op Close.
// Used for stdout output and in tests.
type Writer struct {
	io.Writer
}

// NewWriter wraps w as a Transport.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w}
}

func (w *Writer) Close() error {
	return nil
}
