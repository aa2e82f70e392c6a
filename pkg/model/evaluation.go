package model

import "time"

// TargetOutcome is one record reported by the evaluator. Exactly one of
// DrvPath or Error is set.
type TargetOutcome struct {
	AttrPath string            `json:"attr"`
	DrvPath  string            `json:"drv_path,omitempty"`
	Outputs  map[string]string `json:"outputs,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Succeeded returns true when the target produced a build output.
func (t TargetOutcome) Succeeded() bool {
	return t.Error == "" && t.DrvPath != ""
}

// BuildTarget is a successfully evaluated target ready for building.
type BuildTarget struct {
	AttrPath string            `json:"attr"`
	DrvPath  string            `json:"drv_path"`
	Outputs  map[string]string `json:"outputs,omitempty"`
}

// EvaluationResult is the value an evaluator run produces. Outcome is failure
// only when the evaluator itself could not run or produced nothing parseable;
// individual target failures live in Targets.
type EvaluationResult struct {
	Outcome  EvaluationOutcome
	Error    string
	Targets  []TargetOutcome
	Duration time.Duration
}

// Succeeded reports whether the evaluator run as a whole succeeded.
func (r EvaluationResult) Succeeded() bool {
	return r.Outcome == EvaluationSuccess
}

// BuildTargets returns the targets that evaluated successfully, in order.
func (r EvaluationResult) BuildTargets() []BuildTarget {
	var out []BuildTarget
	for _, t := range r.Targets {
		if t.Succeeded() {
			out = append(out, BuildTarget{AttrPath: t.AttrPath, DrvPath: t.DrvPath, Outputs: t.Outputs})
		}
	}
	return out
}

// FailedTargets returns the targets that failed to evaluate, in order.
func (r EvaluationResult) FailedTargets() []TargetOutcome {
	var out []TargetOutcome
	for _, t := range r.Targets {
		if !t.Succeeded() {
			out = append(out, t)
		}
	}
	return out
}

// Evaluation is the persisted history record of one evaluation attempt.
type Evaluation struct {
	ID         int64             `json:"id"`
	JobsetID   int64             `json:"jobset_id"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMS int64             `json:"duration_ms"`
	Outcome    EvaluationOutcome `json:"outcome"`
	Error      string            `json:"error,omitempty"`
	Targets    []TargetOutcome   `json:"targets"`
}

// NewEvaluation builds the history record for result, started at startedAt.
func NewEvaluation(jobsetID int64, startedAt time.Time, result EvaluationResult) *Evaluation {
	targets := result.Targets
	if targets == nil {
		targets = []TargetOutcome{}
	}
	return &Evaluation{
		JobsetID:   jobsetID,
		StartedAt:  startedAt,
		DurationMS: DurationMillis(result.Duration),
		Outcome:    result.Outcome,
		Error:      result.Error,
		Targets:    targets,
	}
}

// DurationMillis converts d to whole milliseconds, rounding up so that any
// completed attempt records at least 1.
func DurationMillis(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	ms := int64(d / time.Millisecond)
	if d%time.Millisecond != 0 {
		ms++
	}
	return ms
}
