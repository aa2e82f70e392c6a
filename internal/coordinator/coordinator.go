// Package coordinator owns the jobset evaluation lifecycle. It is the only
// writer of a jobset's state and timing fields.
//
// A per-jobset lock serializes the read-check-write steps, but it is never
// held while the evaluator runs. While an evaluation is in flight the
// persisted state (QUEUED or EVALUATING) is what keeps a second caller out.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/me/flakeci/internal/evaluator"
	"github.com/me/flakeci/internal/store"
	"github.com/me/flakeci/pkg/model"
)

// Coordinator schedules jobset evaluations and serves jobset reads.
type Coordinator struct {
	store      store.Store
	runner     evaluator.Runner
	dispatcher BuildDispatcher
	locks      *lockTable
	limiter    *semaphore
	now        func() time.Time
	logger     *slog.Logger

	running atomic.Int64
}

// Option configures optional Coordinator dependencies.
type Option func(*Coordinator)

// WithDispatcher sets where successful evaluations are handed off.
func WithDispatcher(d BuildDispatcher) Option {
	return func(c *Coordinator) {
		c.dispatcher = d
	}
}

// WithMaxConcurrent bounds the number of evaluations running at once.
// Jobsets waiting for a slot are persisted as QUEUED. n <= 0 is unbounded.
func WithMaxConcurrent(n int) Option {
	return func(c *Coordinator) {
		c.limiter = newSemaphore(n)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates a Coordinator.
func New(st store.Store, runner evaluator.Runner, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  st,
		runner: runner,
		locks:  newLockTable(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dispatcher == nil {
		c.dispatcher = NewLogDispatcher(logger)
	}
	return c
}

// Running returns the number of evaluator invocations in flight.
func (c *Coordinator) Running() int {
	return int(c.running.Load())
}

// GetProjects lists all projects.
func (c *Coordinator) GetProjects(ctx context.Context) ([]*model.Project, error) {
	projects, err := c.store.ListProjects(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list projects", Err: err}
	}
	return projects, nil
}

// GetJobsets returns the project's jobsets ordered by id.
func (c *Coordinator) GetJobsets(ctx context.Context, projectID int64) ([]*model.Jobset, error) {
	if projectID <= 0 {
		return nil, &InvalidInputError{Message: fmt.Sprintf("invalid project id %d", projectID)}
	}
	jobsets, err := c.store.GetProjectJobsets(ctx, projectID)
	if err != nil {
		return nil, &PersistenceError{Op: fmt.Sprintf("list jobsets of project %d", projectID), Err: err}
	}
	return jobsets, nil
}

// GetJobset returns the jobset, or nil if it does not exist.
func (c *Coordinator) GetJobset(ctx context.Context, id int64) (*model.Jobset, error) {
	if id <= 0 {
		return nil, &InvalidInputError{Message: fmt.Sprintf("invalid jobset id %d", id)}
	}
	js, err := c.store.GetJobset(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "load", JobsetID: id, Err: err}
	}
	return js, nil
}

// TriggerJobset loads the jobset by id and schedules it. The returned jobset
// reflects the state after the attempt.
func (c *Coordinator) TriggerJobset(ctx context.Context, id int64) (*model.Jobset, *model.Evaluation, error) {
	js, err := c.GetJobset(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if js == nil {
		return nil, nil, &InvalidInputError{JobsetID: id, Message: "not found", NotFound: true}
	}
	ev, err := c.ScheduleJobset(ctx, js)
	return js, ev, err
}

// ScheduleJobset evaluates the jobset now, unless an evaluation is already in
// flight, in which case it returns ErrAlreadyRunning without side effects.
//
// It returns the evaluation record on success. When the evaluator fails, it
// returns the record together with an *EvaluatorError. Other errors are
// *InvalidInputError or *PersistenceError, or ctx.Err() wrapped when ctx ends
// while the jobset is QUEUED; in that case the previous state is restored and
// nothing was evaluated. On return js holds the persisted state of the attempt.
func (c *Coordinator) ScheduleJobset(ctx context.Context, js *model.Jobset) (*model.Evaluation, error) {
	if js == nil || js.ID <= 0 {
		var id int64
		if js != nil {
			id = js.ID
		}
		return nil, &InvalidInputError{JobsetID: id, Message: "invalid jobset id"}
	}
	id := js.ID

	unlock := c.locks.Lock(id)
	current, err := c.store.GetJobset(ctx, id)
	if err != nil {
		unlock()
		return nil, &PersistenceError{Op: "load", JobsetID: id, Err: err}
	}
	if current == nil {
		unlock()
		return nil, &InvalidInputError{JobsetID: id, Message: "not found", NotFound: true}
	}
	if current.State.InFlight() {
		unlock()
		c.logger.Debug("jobset already running", "jobset_id", id, "state", current.State)
		return nil, ErrAlreadyRunning
	}

	if !c.limiter.TryAcquire() {
		current, unlock, err = c.waitForSlot(ctx, current, unlock)
		if err != nil {
			return nil, err
		}
	}
	defer c.limiter.Release()

	if !current.State.CanTransitionTo(model.JobsetStateEvaluating) {
		unlock()
		return nil, &InvalidInputError{JobsetID: id, Message: (&model.InvalidTransitionError{
			Entity: "jobset", ID: id, From: current.State, To: model.JobsetStateEvaluating,
		}).Error()}
	}
	startedAt := c.now()
	current.State = model.JobsetStateEvaluating
	current.LastChecked = &startedAt
	if err := c.store.UpdateJobset(ctx, current); err != nil {
		unlock()
		return nil, &PersistenceError{Op: "mark evaluating", JobsetID: id, Err: err}
	}
	unlock()

	// From here the work belongs to the jobset, not the caller: a caller
	// going away must not cancel the evaluator or the final write.
	detached := context.WithoutCancel(ctx)

	c.logger.Info("evaluation started", "jobset_id", id, "flake", current.Flake)
	c.running.Add(1)
	result := c.runner.Evaluate(detached, current.Flake)
	c.running.Add(-1)

	unlock = c.locks.Lock(id)
	ev, err := c.record(detached, current, startedAt, result)
	unlock()
	if err != nil {
		return nil, err
	}
	*js = *current.Clone()

	if !result.Succeeded() {
		c.logger.Warn("evaluation failed",
			"jobset_id", id,
			"duration", result.Duration,
			"error", result.Error,
		)
		return ev, &EvaluatorError{JobsetID: id, Message: result.Error, Duration: result.Duration}
	}

	c.logger.Info("evaluation succeeded",
		"jobset_id", id,
		"duration", result.Duration,
		"targets", len(result.BuildTargets()),
		"failed_targets", len(result.FailedTargets()),
	)
	if err := c.dispatcher.Dispatch(detached, *current.Clone(), result); err != nil {
		c.logger.Error("hand off build targets", "jobset_id", id, "error", err)
	}
	return ev, nil
}

// waitForSlot persists QUEUED, waits for the limiter and returns with the
// jobset lock held again. On error the lock is released.
func (c *Coordinator) waitForSlot(ctx context.Context, current *model.Jobset, unlock func()) (*model.Jobset, func(), error) {
	id := current.ID
	prev := current.State
	current.State = model.JobsetStateQueued
	if err := c.store.UpdateJobset(ctx, current); err != nil {
		unlock()
		return nil, nil, &PersistenceError{Op: "mark queued", JobsetID: id, Err: err}
	}
	unlock()
	c.logger.Info("jobset queued", "jobset_id", id, "running", c.limiter.InUse())

	acquired := c.limiter.Acquire(ctx)
	unlock = c.locks.Lock(id)
	if !acquired {
		current.State = prev
		if err := c.store.UpdateJobset(context.WithoutCancel(ctx), current); err != nil {
			c.logger.Error("restore state after cancelled queue wait", "jobset_id", id, "error", err)
		}
		unlock()
		c.logger.Info("queue wait cancelled", "jobset_id", id, "state", prev)
		return nil, nil, fmt.Errorf("jobset %d: wait for evaluation slot: %w", id, ctx.Err())
	}
	return current, unlock, nil
}

// record persists the outcome of an evaluation. The caller holds the jobset lock.
// If the jobset write fails the record stays EVALUATING. A failed history
// write leaves the returned evaluation with a zero ID.
func (c *Coordinator) record(ctx context.Context, current *model.Jobset, startedAt time.Time, result model.EvaluationResult) (*model.Evaluation, error) {
	id := current.ID
	finishedAt := c.now()
	if finishedAt.Before(startedAt) {
		finishedAt = startedAt
	}
	took := model.DurationMillis(result.Duration)
	current.EvaluationTook = &took
	if result.Succeeded() {
		// last_evaluated must not run ahead of last_checked.
		current.State = model.JobsetStateSucceeded
		current.LastChecked = &finishedAt
		current.LastEvaluated = &finishedAt
	} else {
		current.State = model.JobsetStateFailed
	}

	if err := c.store.UpdateJobset(ctx, current); err != nil {
		c.logger.Error("record evaluation outcome",
			"jobset_id", id,
			"outcome", result.Outcome,
			"targets", len(result.Targets),
			"evaluator_error", result.Error,
			"error", err,
		)
		return nil, &PersistenceError{Op: "record outcome of", JobsetID: id, Err: err}
	}

	// The jobset row is settled; history failures are logged only.
	ev := model.NewEvaluation(id, startedAt, result)
	if err := c.store.CreateEvaluation(ctx, ev); err != nil {
		c.logger.Error("record evaluation history",
			"jobset_id", id,
			"outcome", result.Outcome,
			"error", err,
		)
	}
	return ev, nil
}
