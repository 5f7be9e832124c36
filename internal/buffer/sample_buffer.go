package buffer

import (
	"sync"

	"github.com/benmeehan/ortho-monitor/internal/constants"
)

// SampleBuffer keeps the most recent readings in a fixed-size ring.
// Append and Snapshot may be called from different goroutines.
type SampleBuffer struct {
	mu    sync.RWMutex
	data  []float64
	start int
	size  int
}

// NewSampleBuffer creates a buffer holding at most capacity values.
// A non-positive capacity selects constants.DefaultSampleCapacity.
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity <= 0 {
		capacity = constants.DefaultSampleCapacity
	}
	return &SampleBuffer{data: make([]float64, capacity)}
}

// Append stores v, evicting the oldest value when the buffer is full.
func (b *SampleBuffer) Append(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size < len(b.data) {
		b.data[(b.start+b.size)%len(b.data)] = v
		b.size++
		return
	}
	b.data[b.start] = v
	b.start = (b.start + 1) % len(b.data)
}

// Snapshot returns a copy of the contents, oldest first.
func (b *SampleBuffer) Snapshot() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]float64, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.data[(b.start+i)%len(b.data)]
	}
	return out
}

// Len returns the number of stored values.
func (b *SampleBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Last returns the most recent value; ok is false when the buffer is empty.
func (b *SampleBuffer) Last() (v float64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return 0, false
	}
	return b.data[(b.start+b.size-1)%len(b.data)], true
}

// Cap returns the maximum number of values retained.
func (b *SampleBuffer) Cap() int {
	return len(b.data)
}
