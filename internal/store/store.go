// Package store persists projects, jobsets and evaluation history.
//
// Operations are atomic per record only; callers must not rely on
// cross-record transactions.
package store

import (
	"context"
	"errors"

	"github.com/me/flakeci/pkg/model"
)

// ErrNotFound is returned by updates that match no record.
var ErrNotFound = errors.New("record not found")

// Store defines the persistence layer for flakeci entities.
// Getters return (nil, nil) when the record does not exist.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	ListProjects(ctx context.Context) ([]*model.Project, error)

	// Jobsets
	CreateJobset(ctx context.Context, js *model.Jobset) error
	GetJobset(ctx context.Context, id int64) (*model.Jobset, error)
	// GetProjectJobsets returns the project's jobsets ordered by id ascending.
	GetProjectJobsets(ctx context.Context, projectID int64) ([]*model.Jobset, error)
	UpdateJobset(ctx context.Context, js *model.Jobset) error

	// Evaluation history, newest first.
	CreateEvaluation(ctx context.Context, ev *model.Evaluation) error
	ListEvaluations(ctx context.Context, jobsetID int64, opts model.ListOptions) ([]*model.Evaluation, int, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
