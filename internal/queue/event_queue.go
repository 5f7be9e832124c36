package queue

import (
	"sync"

	"github.com/benmeehan/ortho-monitor/internal/models"
)

// EventQueue is an unbounded FIFO handing events from the ingestion worker to
// the consumer. Push never blocks on the consumer.
type EventQueue struct {
	mu   sync.Mutex
	data []models.Event
}

func NewEventQueue() *EventQueue {
	return &EventQueue{data: make([]models.Event, 0, 64)}
}

func (q *EventQueue) Push(e models.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.data = append(q.data, e)
}

// Drain removes and returns every queued event in arrival order.
func (q *EventQueue) Drain() []models.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	out := q.data
	q.data = make([]models.Event, 0, cap(out))
	return out
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}
