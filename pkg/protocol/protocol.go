package protocol

import (
	"regexp"
	"strconv"
)

// Commands understood by the heart-rate firmware.
const (
	CommandStart = "CMD:START"
	CommandStand = "CMD:STAND"
	CommandReset = "CMD:RESET"
)

var (
	readingPattern = regexp.MustCompile(`^\s*BPM:\s*([0-9]+(?:\.[0-9]+)?)`)
	metricsPattern = regexp.MustCompile(`METRICS\s+baseline=([-+]?[0-9.]+)\s+peak=([-+]?[0-9.]+)\s+dHR=([-+]?[0-9.]+)\s+tpeak=([-+]?[0-9.]+)\s+recov60=([-+]?[0-9.]+)`)
)

// Message is one classified telemetry line. The concrete type is one of
// Reading, Metrics, Status or Unrecognized.
type Message interface {
	isMessage()
}

// Reading is an instantaneous heart-rate sample.
type Reading struct {
	BPM float64
}

// Metrics is the summary the device emits once a test completes.
type Metrics struct {
	Baseline float64 `json:"baseline"`
	Peak     float64 `json:"peak"`
	DeltaHR  float64 `json:"dHR"`
	TPeak    float64 `json:"t_peak_s"`
	Recov60  float64 `json:"recov60"`
}

// Status carries a transport-level notice such as a completed connect.
// Parse never produces it.
type Status struct {
	Text string
}

// Unrecognized preserves a line that matched no pattern.
type Unrecognized struct {
	Text string
}

func (Reading) isMessage()      {}
func (Metrics) isMessage()      {}
func (Status) isMessage()       {}
func (Unrecognized) isMessage() {}

// Parse classifies a framed line. The reading pattern is tried first, then the
// metrics pattern; a line yields exactly one message and never fails.
func Parse(line string) Message {
	if m := readingPattern.FindStringSubmatch(line); m != nil {
		bpm, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Unrecognized{Text: line}
		}
		return Reading{BPM: bpm}
	}

	if m := metricsPattern.FindStringSubmatch(line); m != nil {
		values := make([]float64, 0, 5)
		for _, field := range m[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Unrecognized{Text: line}
			}
			values = append(values, v)
		}
		return Metrics{
			Baseline: values[0],
			Peak:     values[1],
			DeltaHR:  values[2],
			TPeak:    values[3],
			Recov60:  values[4],
		}
	}

	return Unrecognized{Text: line}
}

// EncodeCommand returns the wire form of an outbound command.
func EncodeCommand(cmd string) []byte {
	return []byte(cmd + "\n")
}
