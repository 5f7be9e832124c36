package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a command is sent without an open connection.
	ErrNotConnected = errors.New("not connected to the device")
	// ErrAlreadyConnected is returned by Connect while a connection is active.
	ErrAlreadyConnected = errors.New("a device connection is already active")
)

// ConnectionError reports a device port that could not be opened.
type ConnectionError struct {
	Endpoint string
	BaudRate int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to open %s @ %d: %v", e.Endpoint, e.BaudRate, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
