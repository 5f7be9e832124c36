package serialport

import (
	"errors"
	"strings"

	"go.bug.st/serial"
)

// ErrNoPorts is returned when no serial port is available for selection.
var ErrNoPorts = errors.New("no serial ports found")

// ListPorts returns the serial ports present on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// AutoSelect picks the first port whose name contains one of hints
// (case-insensitive), falling back to the first port listed.
func AutoSelect(ports []string, hints []string) (string, error) {
	if len(ports) == 0 {
		return "", ErrNoPorts
	}
	for _, p := range ports {
		lower := strings.ToLower(p)
		for _, h := range hints {
			if h != "" && strings.Contains(lower, strings.ToLower(h)) {
				return p, nil
			}
		}
	}
	return ports[0], nil
}
