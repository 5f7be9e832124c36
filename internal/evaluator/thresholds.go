package evaluator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/benmeehan/ortho-monitor/internal/constants"
	cmap "github.com/orcaman/concurrent-map/v2"
)

var (
	// ErrUnknownThreshold is returned when setting a threshold name that does not exist.
	ErrUnknownThreshold = errors.New("unknown threshold")
	// ErrInvalidThreshold is returned for NaN or infinite threshold values.
	ErrInvalidThreshold = errors.New("threshold value must be a finite number")
)

// ThresholdConfig holds the four configurable bounds used by Evaluate.
// No ordering between fields is assumed; DeltaHRMin may exceed DeltaHRMax.
type ThresholdConfig struct {
	DeltaHRMin     float64 `yaml:"dhr_min" json:"dhr_min"`
	DeltaHRMax     float64 `yaml:"dhr_max" json:"dhr_max"`
	PeakMax        float64 `yaml:"peak_max" json:"peak_max"`
	RecoveryMargin float64 `yaml:"recovery_margin" json:"recovery_margin"`
}

// DefaultThresholdConfig returns the bounds the monitor starts with.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		DeltaHRMin:     constants.DefaultDeltaHRMin,
		DeltaHRMax:     constants.DefaultDeltaHRMax,
		PeakMax:        constants.DefaultPeakMax,
		RecoveryMargin: constants.DefaultRecoveryMargin,
	}
}

// Thresholds is the live, concurrently editable threshold store.
// The consumer edits it while the ingestion worker snapshots it per evaluation.
type Thresholds struct {
	values cmap.ConcurrentMap[string, float64]
}

// NewThresholds creates a store seeded with cfg.
func NewThresholds(cfg ThresholdConfig) *Thresholds {
	t := &Thresholds{values: cmap.New[float64]()}
	t.values.Set(constants.ThresholdDeltaHRMin, cfg.DeltaHRMin)
	t.values.Set(constants.ThresholdDeltaHRMax, cfg.DeltaHRMax)
	t.values.Set(constants.ThresholdPeakMax, cfg.PeakMax)
	t.values.Set(constants.ThresholdRecoveryMargin, cfg.RecoveryMargin)
	return t
}

// Set updates a single threshold by name.
func (t *Thresholds) Set(name string, value float64) error {
	if !t.values.Has(name) {
		return fmt.Errorf("%w: %q", ErrUnknownThreshold, name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidThreshold, name, value)
	}
	t.values.Set(name, value)
	return nil
}

// Get returns the current value of a threshold.
func (t *Thresholds) Get(name string) (float64, bool) {
	return t.values.Get(name)
}

// Snapshot reads every threshold once and returns them as a ThresholdConfig.
func (t *Thresholds) Snapshot() ThresholdConfig {
	get := func(name string) float64 {
		v, _ := t.values.Get(name)
		return v
	}
	return ThresholdConfig{
		DeltaHRMin:     get(constants.ThresholdDeltaHRMin),
		DeltaHRMax:     get(constants.ThresholdDeltaHRMax),
		PeakMax:        get(constants.ThresholdPeakMax),
		RecoveryMargin: get(constants.ThresholdRecoveryMargin),
	}
}

// Names lists the configurable threshold names in sorted order.
func (t *Thresholds) Names() []string {
	names := t.values.Keys()
	sort.Strings(names)
	return names
}
