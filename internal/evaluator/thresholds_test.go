package evaluator

import (
	"math"
	"sync"
	"testing"

	"github.com/benmeehan/ortho-monitor/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholds_SnapshotReflectsSeed(t *testing.T) {
	th := NewThresholds(DefaultThresholdConfig())

	assert.Equal(t, ThresholdConfig{DeltaHRMin: 10, DeltaHRMax: 30, PeakMax: 120, RecoveryMargin: 10}, th.Snapshot())
}

func TestThresholds_Set(t *testing.T) {
	th := NewThresholds(DefaultThresholdConfig())

	require.NoError(t, th.Set(constants.ThresholdPeakMax, 140))
	require.NoError(t, th.Set(constants.ThresholdDeltaHRMin, 45))

	snap := th.Snapshot()
	assert.Equal(t, 140.0, snap.PeakMax)
	assert.Equal(t, 45.0, snap.DeltaHRMin)

	v, ok := th.Get(constants.ThresholdPeakMax)
	assert.True(t, ok)
	assert.Equal(t, 140.0, v)
}

func TestThresholds_SetRejectsUnknownAndNonFinite(t *testing.T) {
	th := NewThresholds(DefaultThresholdConfig())

	assert.ErrorIs(t, th.Set("heart_max", 1), ErrUnknownThreshold)
	assert.ErrorIs(t, th.Set(constants.ThresholdPeakMax, math.NaN()), ErrInvalidThreshold)
	assert.ErrorIs(t, th.Set(constants.ThresholdPeakMax, math.Inf(1)), ErrInvalidThreshold)
	assert.Equal(t, DefaultThresholdConfig(), th.Snapshot())
}

func TestThresholds_Names(t *testing.T) {
	th := NewThresholds(DefaultThresholdConfig())

	assert.Equal(t, []string{"dhr_max", "dhr_min", "peak_max", "recovery_margin"}, th.Names())
}

func TestThresholds_ConcurrentEditsAndSnapshots(t *testing.T) {
	th := NewThresholds(DefaultThresholdConfig())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = th.Set(constants.ThresholdRecoveryMargin, float64(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := th.Snapshot()
			assert.GreaterOrEqual(t, snap.RecoveryMargin, 0.0)
		}
	}()
	wg.Wait()

	assert.Equal(t, 999.0, th.Snapshot().RecoveryMargin)
}
