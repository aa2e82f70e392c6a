package coordinator

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyRunning is returned when the jobset already has an evaluation in
// flight. It is an expected outcome, not a failure.
var ErrAlreadyRunning = errors.New("jobset evaluation already running")

// InvalidInputError reports a malformed or unknown jobset. Nothing was mutated.
type InvalidInputError struct {
	JobsetID int64
	Message  string
	NotFound bool
}

func (e *InvalidInputError) Error() string {
	if e.JobsetID != 0 {
		return fmt.Sprintf("jobset %d: %s", e.JobsetID, e.Message)
	}
	return e.Message
}

// EvaluatorError reports that the evaluator failed as a whole. The jobset has
// been recorded as FAILED.
type EvaluatorError struct {
	JobsetID int64
	Message  string
	Duration time.Duration
}

func (e *EvaluatorError) Error() string {
	return fmt.Sprintf("evaluation of jobset %d failed after %s: %s", e.JobsetID, e.Duration, e.Message)
}

// PersistenceError reports that the store rejected a read or write.
type PersistenceError struct {
	Op       string
	JobsetID int64
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.JobsetID == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s jobset %d: %v", e.Op, e.JobsetID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
