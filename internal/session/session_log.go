package session

import (
	"sync"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/evaluator"
	"github.com/benmeehan/ortho-monitor/internal/models"
	"github.com/benmeehan/ortho-monitor/pkg/protocol"
	"github.com/google/uuid"
)

// SessionLog is the append-only list of evaluated metrics for the running process.
type SessionLog struct {
	mu      sync.RWMutex
	records []models.SessionRecord
	now     func() time.Time
}

// NewSessionLog creates an empty log stamped with the wall clock.
func NewSessionLog() *SessionLog {
	return &SessionLog{now: time.Now}
}

// Record appends a snapshot built from m and its evaluation and returns it.
func (l *SessionLog) Record(sessionID string, m protocol.Metrics, result models.EvaluationResult) models.SessionRecord {
	record := models.SessionRecord{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		Timestamp:      l.now(),
		Baseline:       m.Baseline,
		Peak:           m.Peak,
		DeltaHR:        m.DeltaHR,
		TPeakSeconds:   m.TPeak,
		Recov60:        m.Recov60,
		Verdict:        result.Verdict,
		Interpretation: evaluator.Interpretation(result),
	}

	l.mu.Lock()
	l.records = append(l.records, record)
	l.mu.Unlock()

	return record
}

// ExportAll returns a copy of every record in append order.
func (l *SessionLog) ExportAll() []models.SessionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.SessionRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records logged so far.
func (l *SessionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
