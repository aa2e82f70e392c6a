package model

import (
	"strings"
	"time"
)

// DefaultFlakeAttribute is evaluated when a flake reference names no attribute.
const DefaultFlakeAttribute = "hydraJobs"

// Project groups jobsets.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Jobset is a named configuration whose flake is evaluated on a schedule or
// on demand. Only the coordinator writes State, LastChecked, LastEvaluated and
// EvaluationTook.
type Jobset struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Flake       string `json:"flake"`

	// CheckInterval is how often the scheduler re-evaluates this jobset.
	// Zero falls back to the scheduler default.
	CheckInterval time.Duration `json:"check_interval"`

	State         JobsetState `json:"state"`
	LastChecked   *time.Time  `json:"last_checked,omitempty"`
	LastEvaluated *time.Time  `json:"last_evaluated,omitempty"`
	// EvaluationTook is the duration of the most recent attempt in milliseconds.
	EvaluationTook *int64 `json:"evaluation_took_ms,omitempty"`
}

// Due reports whether the jobset should be evaluated at now.
func (j *Jobset) Due(now time.Time, fallback time.Duration) bool {
	if j.LastChecked == nil {
		return true
	}
	interval := j.CheckInterval
	if interval <= 0 {
		interval = fallback
	}
	return !now.Before(j.LastChecked.Add(interval))
}

// FlakeRef splits the jobset's flake into its source URI and attribute path.
// The attribute falls back to defaultAttr, then DefaultFlakeAttribute.
func (j *Jobset) FlakeRef(defaultAttr string) (uri, attr string) {
	return SplitFlakeRef(j.Flake, defaultAttr)
}

// SplitFlakeRef splits "uri#attr" into its parts.
func SplitFlakeRef(ref, defaultAttr string) (uri, attr string) {
	uri, attr, _ = strings.Cut(strings.TrimSpace(ref), "#")
	if attr == "" {
		attr = defaultAttr
	}
	if attr == "" {
		attr = DefaultFlakeAttribute
	}
	return uri, attr
}

// Clone returns a deep copy so callers cannot alias stored timestamps.
func (j *Jobset) Clone() *Jobset {
	if j == nil {
		return nil
	}
	c := *j
	if j.LastChecked != nil {
		t := *j.LastChecked
		c.LastChecked = &t
	}
	if j.LastEvaluated != nil {
		t := *j.LastEvaluated
		c.LastEvaluated = &t
	}
	if j.EvaluationTook != nil {
		d := *j.EvaluationTook
		c.EvaluationTook = &d
	}
	return &c
}
