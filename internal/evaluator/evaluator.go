package evaluator

import (
	"fmt"
	"strings"

	"github.com/benmeehan/ortho-monitor/internal/constants"
	"github.com/benmeehan/ortho-monitor/internal/models"
	"github.com/benmeehan/ortho-monitor/pkg/protocol"
)

// NormalInterpretation is the interpretation text of a result with no reasons.
const NormalInterpretation = "Normal response"

// Evaluate classifies a metrics summary against cfg. All five checks run in a
// fixed order (baseline, ΔHR, peak, t_peak, recovery) and each may add one reason.
func Evaluate(m protocol.Metrics, cfg ThresholdConfig) models.EvaluationResult {
	var reasons []string

	if m.Baseline < constants.BradycardiaBelow {
		reasons = append(reasons, fmt.Sprintf("Bradycardia (<%g bpm)", constants.BradycardiaBelow))
	} else if m.Baseline > constants.RestingTachycardiaAbove {
		reasons = append(reasons, fmt.Sprintf("Resting tachycardia (>%g bpm)", constants.RestingTachycardiaAbove))
	}

	if m.DeltaHR < cfg.DeltaHRMin {
		reasons = append(reasons, fmt.Sprintf("ΔHR too low (<%g) → suspected hypotension/dysautonomia", cfg.DeltaHRMin))
	} else if m.DeltaHR > cfg.DeltaHRMax {
		reasons = append(reasons, fmt.Sprintf("ΔHR too high (>%g) → possible POTS/anxiety", cfg.DeltaHRMax))
	}

	if m.Peak > cfg.PeakMax {
		reasons = append(reasons, fmt.Sprintf("Peak >%g bpm → hyperadrenergic", cfg.PeakMax))
	}

	if m.TPeak > constants.SlowReactivityTPeak {
		reasons = append(reasons, fmt.Sprintf("t_peak >%gs → slow sympathetic reactivity", constants.SlowReactivityTPeak))
	}

	if m.Recov60-m.Baseline > cfg.RecoveryMargin {
		reasons = append(reasons, fmt.Sprintf("Slow recovery (>%g bpm above baseline at 60-120s)", cfg.RecoveryMargin))
	}

	if len(reasons) == 0 {
		return models.EvaluationResult{Verdict: models.VerdictNormal}
	}
	return models.EvaluationResult{Verdict: models.VerdictAttention, Reasons: reasons}
}

// Interpretation renders a result as the single line shown to the operator.
func Interpretation(result models.EvaluationResult) string {
	if len(result.Reasons) == 0 {
		return NormalInterpretation
	}
	return strings.Join(result.Reasons, " | ")
}
