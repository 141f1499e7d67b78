// Package serial wraps the raw byte-oriented and line-oriented serial
// links the acquisition thread reads from (spec.md §6): EEG at 115200
// 8N1 and NIRS at 57600 8N1. It owns reconnection, not framing — bytes
// are handed to pkg/protocol's parsers by the caller.
package serial

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/term"
)

// Port speeds fixed by the device firmware.
const (
	EEGBaud  = 115200
	NIRSBaud = 57600
)

// TransportError wraps a serial read/open failure (spec.md §7); the
// acquisition thread logs SERIAL_ERROR, restarts the port after
// back-off, and samples during the gap become Missing.
type TransportError struct {
	Device string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("serial transport %s: %v", e.Device, e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }

// readCloser is the minimal surface Reconnector needs from an open port;
// Port satisfies it, and tests substitute a fake to exercise the
// reconnect/back-off loop without a real device.
type readCloser interface {
	Read([]byte) (int, error)
	Close() error
}

// Port is a thin, reopenable handle over a single raw serial device.
type Port struct {
	device string
	baud   int
	t      *term.Term
}

// Open opens device at the given baud rate in 8N1 raw mode.
func Open(device string, baud int) (*Port, error) {
	t, err := term.Open(device, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, &TransportError{Device: device, Err: err}
	}
	return &Port{device: device, baud: baud, t: t}, nil
}

// Read satisfies io.Reader, wrapping read errors as TransportError.
func (p *Port) Read(buf []byte) (int, error) {
	n, err := p.t.Read(buf)
	if err != nil && err != io.EOF {
		return n, &TransportError{Device: p.device, Err: err}
	}
	return n, err
}

// Close releases the underlying file descriptor.
func (p *Port) Close() error {
	if p.t == nil {
		return nil
	}
	return p.t.Close()
}

// Reconnector keeps a Port alive across transient failures: on read
// error it closes the broken handle, waits with exponential back-off
// (capped), and reopens. Callers read through Reconnector.Read, which
// blocks until either a successful read or the stop channel closes.
type Reconnector struct {
	device      string
	baud        int
	port        readCloser
	onError     func(error)
	maxBackoff  time.Duration
	baseBackoff time.Duration
	openFunc    func(device string, baud int) (readCloser, error)
}

// NewReconnector builds a Reconnector. onError is invoked (e.g. to log
// SERIAL_ERROR) every time a read fails and a reopen is attempted; it may
// be nil.
func NewReconnector(device string, baud int, onError func(error)) *Reconnector {
	return &Reconnector{
		device:      device,
		baud:        baud,
		onError:     onError,
		baseBackoff: 200 * time.Millisecond,
		maxBackoff:  10 * time.Second,
		openFunc: func(device string, baud int) (readCloser, error) {
			return Open(device, baud)
		},
	}
}

// Read fills buf from the underlying port, transparently reopening on
// failure. It only returns an error if stop closes while reconnecting.
func (r *Reconnector) Read(buf []byte, stop <-chan struct{}) (int, error) {
	backoff := r.baseBackoff
	for {
		if r.port == nil {
			p, err := r.openFunc(r.device, r.baud)
			if err != nil {
				if r.onError != nil {
					r.onError(err)
				}
				select {
				case <-stop:
					return 0, err
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > r.maxBackoff {
					backoff = r.maxBackoff
				}
				continue
			}
			r.port = p
			backoff = r.baseBackoff
		}

		n, err := r.port.Read(buf)
		if err != nil && err != io.EOF {
			if r.onError != nil {
				r.onError(err)
			}
			r.port.Close()
			r.port = nil
			select {
			case <-stop:
				return 0, err
			case <-time.After(backoff):
			}
			continue
		}
		if n > 0 {
			return n, nil
		}
	}
}

// Close releases the current underlying port, if any.
func (r *Reconnector) Close() error {
	if r.port == nil {
		return nil
	}
	return r.port.Close()
}
