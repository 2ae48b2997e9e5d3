// Package util contains supporting utilities that are not part of the
// public API.
package util

import (
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// SerialPortInterface describes the byte transport the VNA drivers run
// on. A real serial port implements it in production; tests substitute
// a mock. The drivers own all framing: the transport is never expected
// to buffer beyond a single call.
type SerialPortInterface interface {
	// Read returns whatever is available, up to len(p) bytes. A read
	// timeout yields (0, nil).
	Read(p []byte) (n int, err error)
	// ReadLine reads until a newline or the read timeout and returns
	// what was collected, possibly without a trailing newline.
	ReadLine() ([]byte, error)
	Write(p []byte) (n int, err error)
	Close() error
	// SetReadTimeout bounds subsequent reads. Zero means block forever.
	SetReadTimeout(t time.Duration) error
}

// realPort wraps a physical serial port.
type realPort struct {
	port serial.Port
}

func (r *realPort) Read(p []byte) (n int, err error)  { return r.port.Read(p) }
func (r *realPort) Write(p []byte) (n int, err error) { return r.port.Write(p) }
func (r *realPort) Close() error                      { return r.port.Close() }

func (r *realPort) SetReadTimeout(t time.Duration) error {
	if t <= 0 {
		return r.port.SetReadTimeout(serial.NoTimeout)
	}
	return r.port.SetReadTimeout(t)
}

// ReadLine collects bytes one at a time so that nothing past the
// newline is consumed; a buffered reader here would swallow framing
// that belongs to the next protocol exchange.
func (r *realPort) ReadLine() ([]byte, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := r.port.Read(buf)
		if err != nil {
			return line, err
		}
		if n == 0 {
			// Timeout: hand back what we have.
			return line, nil
		}
		line = append(line, buf[0])
		if buf[0] == '\n' {
			return line, nil
		}
	}
}

// OpenPort opens a physical serial port.
func OpenPort(path string, mode *serial.Mode) (SerialPortInterface, error) {
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "opening serial port %s", path)
	}
	return &realPort{port: p}, nil
}
