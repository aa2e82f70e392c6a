package coordinator

import (
	"context"
	"log/slog"

	"github.com/me/flakeci/pkg/model"
)

//go:generate mockgen -package mocks -destination mocks/mocks_dispatcher.go github.com/me/flakeci/internal/coordinator BuildDispatcher

// BuildDispatcher receives the result of every SUCCEEDED evaluation. The
// coordinator's responsibility ends once Dispatch returns.
type BuildDispatcher interface {
	Dispatch(ctx context.Context, jobset model.Jobset, result model.EvaluationResult) error
}

// LogDispatcher logs build targets instead of building them.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher returns a dispatcher that only logs.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With("component", "dispatch")}
}

func (d *LogDispatcher) Dispatch(_ context.Context, js model.Jobset, result model.EvaluationResult) error {
	for _, t := range result.BuildTargets() {
		d.logger.Info("build target", "jobset_id", js.ID, "attr", t.AttrPath, "drv", t.DrvPath)
	}
	for _, t := range result.FailedTargets() {
		d.logger.Warn("target failed to evaluate", "jobset_id", js.ID, "attr", t.AttrPath, "error", t.Error)
	}
	return nil
}
