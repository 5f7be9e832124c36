package constants

import "time"

// PipelineState is the connection state of the ingestion pipeline.
type PipelineState string

const (
	StateDisconnected PipelineState = "disconnected"
	StateConnecting   PipelineState = "connecting"
	StateConnected    PipelineState = "connected"
	StateFaulted      PipelineState = "faulted"
)

const (
	// DefaultBaudRate matches the firmware's serial configuration.
	DefaultBaudRate = 115200

	// DefaultReadTimeout bounds a single transport read so stop requests are observed promptly.
	DefaultReadTimeout = 1 * time.Second

	// DefaultSettleDelay covers the microcontroller reset triggered by opening the port.
	DefaultSettleDelay = 2 * time.Second

	// ReadChunkSize is the maximum number of bytes requested per transport read.
	ReadChunkSize = 256

	// DefaultSampleCapacity is the number of readings retained for plotting.
	DefaultSampleCapacity = 300

	// DefaultMaxLineLength caps an unterminated line before it is dropped as noise.
	DefaultMaxLineLength = 4096

	// DefaultBaselineDuration is the resting phase of the 30-30-120 protocol.
	DefaultBaselineDuration = 30 * time.Second

	// ProtocolPollInterval is how often the guided protocol checks for a connected device.
	ProtocolPollInterval = 100 * time.Millisecond

	// EventPollInterval is the consumer's refresh period.
	EventPollInterval = 100 * time.Millisecond
)

// SupportedBaudRates lists the speeds offered for the device connection.
var SupportedBaudRates = []int{9600, 19200, 38400, 57600, 115200}

// DefaultPortHints are substrings that identify likely microcontroller ports.
var DefaultPortHints = []string{"usbmodem", "usbserial", "wch", "ch340"}
