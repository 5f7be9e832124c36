package models

import (
	"time"

	"github.com/benmeehan/ortho-monitor/internal/buffer"
)

// Heartbeat is the periodic status message of a running monitor.
type Heartbeat struct {
	ClientID  string    `json:"client_id"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
	Samples   int       `json:"samples"`
	LastBPM   float64   `json:"last_bpm,omitempty"`
	Records   int       `json:"records"`

	Plot *buffer.PlotRange `json:"plot,omitempty"`
}
