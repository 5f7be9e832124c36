package models

// Verdict is the binary outcome of a threshold evaluation.
type Verdict string

const (
	VerdictNormal    Verdict = "normal"
	VerdictAttention Verdict = "attention"
)

// EvaluationResult is the verdict together with the reasons that triggered it.
// Reasons is empty exactly when Verdict is VerdictNormal.
type EvaluationResult struct {
	Verdict Verdict  `json:"verdict"`
	Reasons []string `json:"reasons,omitempty"`
}
