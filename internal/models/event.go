package models

// EventType identifies what an Event carries.
type EventType string

const (
	EventStatusChanged  EventType = "status_changed"
	EventReadingArrived EventType = "reading_arrived"
	EventMetricsArrived EventType = "metrics_arrived"
	EventErrorOccurred  EventType = "error_occurred"
)

// Event is a notification handed from the ingestion worker to the consumer.
// Only the fields relevant to Type are populated.
type Event struct {
	Type    EventType      `json:"type"`
	Text    string         `json:"text,omitempty"`    // StatusChanged, ErrorOccurred
	BPM     float64        `json:"bpm,omitempty"`     // ReadingArrived
	Record  *SessionRecord `json:"record,omitempty"`  // MetricsArrived
	Verdict Verdict        `json:"verdict,omitempty"` // MetricsArrived
	Reasons []string       `json:"reasons,omitempty"` // MetricsArrived
}

// StatusEvent builds a StatusChanged event.
func StatusEvent(text string) Event {
	return Event{Type: EventStatusChanged, Text: text}
}

// ErrorEvent builds an ErrorOccurred event.
func ErrorEvent(text string) Event {
	return Event{Type: EventErrorOccurred, Text: text}
}

// ReadingEvent builds a ReadingArrived event.
func ReadingEvent(bpm float64) Event {
	return Event{Type: EventReadingArrived, BPM: bpm}
}

// MetricsEvent builds a MetricsArrived event from a logged record and its evaluation.
func MetricsEvent(record SessionRecord, result EvaluationResult) Event {
	return Event{
		Type:    EventMetricsArrived,
		Record:  &record,
		Verdict: result.Verdict,
		Reasons: result.Reasons,
	}
}
