package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/me/flakeci/pkg/model"
)

// MemoryStore is an in-process Store. Records are copied on the way in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	nextID      int64
	projects    map[int64]*model.Project
	jobsets     map[int64]*model.Jobset
	evaluations map[int64][]*model.Evaluation

	// UpdateHook, when set, runs before every UpdateJobset; a non-nil
	// error is returned instead of writing.
	UpdateHook func(js *model.Jobset) error

	// EvaluationHook does the same for CreateEvaluation.
	EvaluationHook func(ev *model.Evaluation) error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:    make(map[int64]*model.Project),
		jobsets:     make(map[int64]*model.Jobset),
		evaluations: make(map[int64][]*model.Evaluation),
	}
}

func (m *MemoryStore) Close() error                    { return nil }
func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) CreateProject(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.projects {
		if existing.Name == p.Name {
			return fmt.Errorf("project %q already exists", p.Name)
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.ID = m.id()
	c := *p
	m.projects[p.ID] = &c
	return nil
}

func (m *MemoryStore) GetProject(_ context.Context, id int64) (*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (m *MemoryStore) ListProjects(_ context.Context) ([]*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Project, 0, len(m.projects))
	for _, p := range m.projects {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateJobset(_ context.Context, js *model.Jobset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[js.ProjectID]; !ok {
		return fmt.Errorf("project %d does not exist", js.ProjectID)
	}
	for _, existing := range m.jobsets {
		if existing.ProjectID == js.ProjectID && existing.Name == js.Name {
			return fmt.Errorf("jobset %q already exists in project %d", js.Name, js.ProjectID)
		}
	}
	if js.State == "" {
		js.State = model.JobsetStateUnknown
	}
	js.ID = m.id()
	m.jobsets[js.ID] = js.Clone()
	return nil
}

func (m *MemoryStore) GetJobset(_ context.Context, id int64) (*model.Jobset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobsets[id].Clone(), nil
}

func (m *MemoryStore) GetProjectJobsets(_ context.Context, projectID int64) ([]*model.Jobset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Jobset
	for _, js := range m.jobsets {
		if js.ProjectID == projectID {
			out = append(out, js.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateJobset(_ context.Context, js *model.Jobset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateHook != nil {
		if err := m.UpdateHook(js); err != nil {
			return err
		}
	}
	if _, ok := m.jobsets[js.ID]; !ok {
		return fmt.Errorf("jobset %d: %w", js.ID, ErrNotFound)
	}
	m.jobsets[js.ID] = js.Clone()
	return nil
}

func (m *MemoryStore) CreateEvaluation(_ context.Context, ev *model.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EvaluationHook != nil {
		if err := m.EvaluationHook(ev); err != nil {
			return err
		}
	}
	if _, ok := m.jobsets[ev.JobsetID]; !ok {
		return fmt.Errorf("jobset %d does not exist", ev.JobsetID)
	}
	ev.ID = m.id()
	c := *ev
	m.evaluations[ev.JobsetID] = append(m.evaluations[ev.JobsetID], &c)
	return nil
}

func (m *MemoryStore) ListEvaluations(_ context.Context, jobsetID int64, opts model.ListOptions) ([]*model.Evaluation, int, error) {
	opts.Clamp()
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.evaluations[jobsetID]
	total := len(all)
	var out []*model.Evaluation
	// Newest first.
	for i := total - 1 - opts.Offset; i >= 0 && len(out) < opts.Limit; i-- {
		c := *all[i]
		out = append(out, &c)
	}
	return out, total, nil
}
