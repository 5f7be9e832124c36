package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleBuffer_EvictsOldest(t *testing.T) {
	b := NewSampleBuffer(3)
	for _, v := range []float64{1, 2, 3, 4} {
		b.Append(v)
	}

	assert.Equal(t, []float64{2, 3, 4}, b.Snapshot())
	assert.Equal(t, 3, b.Len())
}

func TestSampleBuffer_PartiallyFilled(t *testing.T) {
	b := NewSampleBuffer(5)
	b.Append(70)
	b.Append(71)

	assert.Equal(t, []float64{70, 71}, b.Snapshot())
	assert.Equal(t, 5, b.Cap())
}

func TestSampleBuffer_DefaultCapacity(t *testing.T) {
	b := NewSampleBuffer(0)

	assert.Equal(t, 300, b.Cap())
	assert.Empty(t, b.Snapshot())
}

func TestSampleBuffer_WrapsManyTimes(t *testing.T) {
	b := NewSampleBuffer(4)
	for i := 0; i < 103; i++ {
		b.Append(float64(i))
	}

	assert.Equal(t, []float64{99, 100, 101, 102}, b.Snapshot())
}

func TestSampleBuffer_SnapshotIsACopy(t *testing.T) {
	b := NewSampleBuffer(2)
	b.Append(1)
	snap := b.Snapshot()
	snap[0] = 42

	assert.Equal(t, []float64{1}, b.Snapshot())
}

func TestSampleBuffer_ConcurrentAppendAndSnapshot(t *testing.T) {
	b := NewSampleBuffer(50)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			b.Append(float64(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := b.Snapshot()
			// Values are appended in increasing order, so any consistent view is sorted
			for j := 1; j < len(snap); j++ {
				if !assert.Less(t, snap[j-1], snap[j]) {
					return
				}
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, 50, b.Len())
}

func fill(capacity int, values ...float64) *SampleBuffer {
	b := NewSampleBuffer(capacity)
	for _, v := range values {
		b.Append(v)
	}
	return b
}

func TestSampleBuffer_PlotRange(t *testing.T) {
	_, ok := NewSampleBuffer(4).PlotRange()
	assert.False(t, ok)

	r, ok := fill(4, 70, 72.5, 90).PlotRange()
	require.True(t, ok)
	assert.Equal(t, PlotRange{XMax: 30, YMin: 65, YMax: 95}, r)

	r, _ = fill(4, 20, 250).PlotRange()
	assert.Equal(t, PlotRange{XMax: 30, YMin: 30, YMax: 200}, r)

	// Flat signal near the ceiling still gets a usable span
	r, _ = fill(4, 210, 210).PlotRange()
	assert.Equal(t, 205, r.YMin)
	assert.Equal(t, 210, r.YMax)

	// Only retained samples count after eviction
	r, _ = fill(2, 150, 80, 82).PlotRange()
	assert.Equal(t, PlotRange{XMax: 30, YMin: 75, YMax: 87}, r)

	r, _ = fill(40, make([]float64, 35)...).PlotRange()
	assert.Equal(t, 35, r.XMax)
}

func TestSampleBuffer_Last(t *testing.T) {
	_, ok := NewSampleBuffer(2).Last()
	assert.False(t, ok)

	v, ok := fill(2, 70, 71, 72).Last()
	require.True(t, ok)
	assert.Equal(t, 72.0, v)
}
