package model

// JobsetState represents the lifecycle state of a Jobset.
type JobsetState string

const (
	JobsetStateUnknown    JobsetState = "UNKNOWN"
	JobsetStateQueued     JobsetState = "QUEUED"
	JobsetStateEvaluating JobsetState = "EVALUATING"
	JobsetStateSucceeded  JobsetState = "SUCCEEDED"
	JobsetStateFailed     JobsetState = "FAILED"
)

// String returns the string representation of the jobset state.
func (s JobsetState) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known states.
func (s JobsetState) IsValid() bool {
	switch s {
	case JobsetStateUnknown, JobsetStateQueued, JobsetStateEvaluating,
		JobsetStateSucceeded, JobsetStateFailed:
		return true
	}
	return false
}

// InFlight returns true while an evaluation has been requested or is running.
// A jobset in flight must not be scheduled again.
func (s JobsetState) InFlight() bool {
	return s == JobsetStateQueued || s == JobsetStateEvaluating
}

// IsTerminal returns true if the last attempt has finished. Terminal states
// end an attempt, not the jobset: a new evaluation may start from either.
func (s JobsetState) IsTerminal() bool {
	return s == JobsetStateSucceeded || s == JobsetStateFailed
}

// ValidJobsetTransitions defines the allowed state transitions for Jobsets.
var ValidJobsetTransitions = map[JobsetState][]JobsetState{
	JobsetStateUnknown:    {JobsetStateQueued, JobsetStateEvaluating},
	JobsetStateQueued:     {JobsetStateEvaluating, JobsetStateUnknown, JobsetStateSucceeded, JobsetStateFailed},
	JobsetStateEvaluating: {JobsetStateSucceeded, JobsetStateFailed},
	JobsetStateSucceeded:  {JobsetStateQueued, JobsetStateEvaluating},
	JobsetStateFailed:     {JobsetStateQueued, JobsetStateEvaluating},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s JobsetState) CanTransitionTo(next JobsetState) bool {
	for _, allowed := range ValidJobsetTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EvaluationOutcome is the overall result of one evaluator invocation.
type EvaluationOutcome string

const (
	EvaluationSuccess EvaluationOutcome = "success"
	EvaluationFailure EvaluationOutcome = "failure"
)
