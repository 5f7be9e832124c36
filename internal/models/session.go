package models

import "time"

// SessionRecord is the immutable snapshot stored for each metrics summary received.
type SessionRecord struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Baseline       float64   `json:"baseline"`
	Peak           float64   `json:"peak"`
	DeltaHR        float64   `json:"dHR"`
	TPeakSeconds   float64   `json:"t_peak_s"`
	Recov60        float64   `json:"recov60"`
	Verdict        Verdict   `json:"verdict"`
	Interpretation string    `json:"interpretation"`
}
