package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/me/flakeci/internal/coordinator"
	"github.com/me/flakeci/pkg/model"
)

// Coordinator is the part of *coordinator.Coordinator the loop drives.
type Coordinator interface {
	GetProjects(ctx context.Context) ([]*model.Project, error)
	GetJobsets(ctx context.Context, projectID int64) ([]*model.Jobset, error)
	ScheduleJobset(ctx context.Context, js *model.Jobset) (*model.Evaluation, error)
}

// Config holds scheduler configuration.
type Config struct {
	PollInterval time.Duration
	// DefaultCheckInterval applies to jobsets without their own interval.
	DefaultCheckInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:         30 * time.Second,
		DefaultCheckInterval: 5 * time.Minute,
	}
}

// Loop implements the Scheduler interface with a polling loop.
type Loop struct {
	coord  Coordinator
	config Config
	now    func() time.Time
	logger *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewLoop creates a new scheduler loop.
func NewLoop(coord Coordinator, cfg Config, logger *slog.Logger) *Loop {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.DefaultCheckInterval <= 0 {
		cfg.DefaultCheckInterval = def.DefaultCheckInterval
	}
	return &Loop{
		coord:  coord,
		config: cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "scheduler"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the scheduling loop. Blocks until ctx is cancelled or Stop is called.
// A tick runs immediately so jobsets that are already due do not wait a full interval.
func (l *Loop) Start(ctx context.Context) error {
	defer close(l.doneCh)
	l.logger.Info("scheduler started",
		"poll_interval", l.config.PollInterval,
		"default_check_interval", l.config.DefaultCheckInterval,
	)
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	l.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler stopping (context cancelled)")
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("scheduler stopping (stop called)")
			return nil
		case <-ticker.C:
			l.runTick(ctx)
		}
	}
}

func (l *Loop) runTick(ctx context.Context) {
	if err := l.Tick(ctx); err != nil {
		l.logger.Error("tick error", "error", err)
	}
}

// Stop shuts down the scheduler and waits for the current tick to finish.
// It must only be called after Start.
func (l *Loop) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	<-l.doneCh
	return nil
}

// Tick evaluates every due jobset concurrently and waits for all of them.
// A jobset that is already running is skipped. Evaluator failures are
// recorded on the jobset and are not tick errors.
func (l *Loop) Tick(ctx context.Context) error {
	var result *multierror.Error

	projects, err := l.coord.GetProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	now := l.now()
	var due []*model.Jobset
	for _, p := range projects {
		jobsets, err := l.coord.GetJobsets(ctx, p.ID)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("list jobsets of project %d: %w", p.ID, err))
			continue
		}
		for _, js := range jobsets {
			if js.State.InFlight() || !js.Due(now, l.config.DefaultCheckInterval) {
				continue
			}
			due = append(due, js)
		}
	}
	if len(due) == 0 {
		return result.ErrorOrNil()
	}
	l.logger.Debug("tick", "due", len(due))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, js := range due {
		wg.Add(1)
		go func(js *model.Jobset) {
			defer wg.Done()
			if err := l.schedule(ctx, js); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		}(js)
	}
	wg.Wait()

	return result.ErrorOrNil()
}

func (l *Loop) schedule(ctx context.Context, js *model.Jobset) error {
	_, err := l.coord.ScheduleJobset(ctx, js)
	var evalErr *coordinator.EvaluatorError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, coordinator.ErrAlreadyRunning):
		l.logger.Debug("skip jobset (already running)", "jobset_id", js.ID)
		return nil
	case errors.As(err, &evalErr):
		l.logger.Warn("scheduled evaluation failed", "jobset_id", js.ID, "error", evalErr.Message)
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// Shutting down while queued: the previous state was restored.
		l.logger.Debug("skip jobset (scheduler stopping)", "jobset_id", js.ID)
		return nil
	default:
		return fmt.Errorf("schedule jobset %d: %w", js.ID, err)
	}
}
