package serialport

import (
	"errors"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is an open, bidirectional byte stream to the device.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens a named port at the given speed. Reads on the returned Port
// must return within readTimeout, reporting (0, nil) when nothing arrived
// and an error once the device is gone.
type Opener interface {
	Open(name string, baud int, readTimeout time.Duration) (Port, error)
}

// SerialOpener opens real serial devices.
type SerialOpener struct{}

// NewSerialOpener creates an Opener backed by the OS serial driver.
func NewSerialOpener() *SerialOpener {
	return &SerialOpener{}
}

// Open configures and opens the serial device.
func (o *SerialOpener) Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	c := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, err
	}
	return NewTimeoutPort(p, readTimeout), nil
}

// ErrHangUp is returned by Read once the device has gone away.
var ErrHangUp = errors.New("serial device hung up")

// TimeoutPort normalises driver reads. The driver reports both an expired read
// timeout and a hung-up tty as an empty read with io.EOF; only an empty read
// that comes back well before the timeout is treated as a hang-up.
type TimeoutPort struct {
	port        io.ReadWriteCloser
	readTimeout time.Duration
	now         func() time.Time
}

// NewTimeoutPort wraps port. A zero readTimeout means reads block, so any
// empty read is a hang-up.
func NewTimeoutPort(port io.ReadWriteCloser, readTimeout time.Duration) *TimeoutPort {
	return &TimeoutPort{port: port, readTimeout: readTimeout, now: time.Now}
}

func (t *TimeoutPort) Read(b []byte) (int, error) {
	started := t.now()
	n, err := t.port.Read(b)
	if n > 0 {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		return n, err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}
	if t.readTimeout <= 0 || t.now().Sub(started) < t.readTimeout/2 {
		return 0, ErrHangUp
	}
	return 0, nil
}

func (t *TimeoutPort) Write(b []byte) (int, error) {
	return t.port.Write(b)
}

func (t *TimeoutPort) Close() error {
	return t.port.Close()
}
