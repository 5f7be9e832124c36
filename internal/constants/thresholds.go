package constants

// Names of the configurable evaluation thresholds.
const (
	ThresholdDeltaHRMin     = "dhr_min"
	ThresholdDeltaHRMax     = "dhr_max"
	ThresholdPeakMax        = "peak_max"
	ThresholdRecoveryMargin = "recovery_margin"
)

// Default values for the configurable thresholds, in bpm.
const (
	DefaultDeltaHRMin     = 10.0
	DefaultDeltaHRMax     = 30.0
	DefaultPeakMax        = 120.0
	DefaultRecoveryMargin = 10.0
)

// Fixed physiological limits that are not user-configurable.
const (
	BradycardiaBelow        = 50.0
	RestingTachycardiaAbove = 100.0
	SlowReactivityTPeak     = 30.0
)
