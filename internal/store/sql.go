package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/flakeci/pkg/model"
)

// SQLStore implements Store on database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

func newSQLStore(db *sql.DB, d dialect, logger *slog.Logger) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger.With("component", "store", "driver", d.name()),
	}
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db, s.dialect)
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

// --- Projects ---

func (s *SQLStore) CreateProject(ctx context.Context, p *model.Project) error {
	s.logger.Debug("sql", "op", "insert", "table", "projects", "name", p.Name)

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return s.queryRow(ctx,
		`INSERT INTO projects (name, description, created_at) VALUES (?, ?, ?) RETURNING id`,
		p.Name, p.Description, formatTime(p.CreatedAt),
	).Scan(&p.ID)
}

func (s *SQLStore) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	s.logger.Debug("sql", "op", "select", "table", "projects", "id", id)

	var p model.Project
	var createdAt string
	err := s.queryRow(ctx,
		`SELECT id, name, description, created_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func (s *SQLStore) ListProjects(ctx context.Context) ([]*model.Project, error) {
	s.logger.Debug("sql", "op", "list", "table", "projects")

	rows, err := s.query(ctx, `SELECT id, name, description, created_at FROM projects ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		var p model.Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// --- Jobsets ---

const jobsetColumns = `id, project_id, name, description, flake, check_interval_ms, state,
	last_checked, last_evaluated, evaluation_took`

func (s *SQLStore) CreateJobset(ctx context.Context, js *model.Jobset) error {
	s.logger.Debug("sql", "op", "insert", "table", "jobsets", "project_id", js.ProjectID, "name", js.Name)

	if js.State == "" {
		js.State = model.JobsetStateUnknown
	}
	return s.queryRow(ctx,
		`INSERT INTO jobsets (project_id, name, description, flake, check_interval_ms, state,
		 last_checked, last_evaluated, evaluation_took)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		js.ProjectID, js.Name, js.Description, js.Flake, js.CheckInterval.Milliseconds(), string(js.State),
		formatTimePtr(js.LastChecked), formatTimePtr(js.LastEvaluated), js.EvaluationTook,
	).Scan(&js.ID)
}

func (s *SQLStore) GetJobset(ctx context.Context, id int64) (*model.Jobset, error) {
	s.logger.Debug("sql", "op", "select", "table", "jobsets", "id", id)

	js, err := scanJobset(s.queryRow(ctx, `SELECT `+jobsetColumns+` FROM jobsets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return js, err
}

func (s *SQLStore) GetProjectJobsets(ctx context.Context, projectID int64) ([]*model.Jobset, error) {
	s.logger.Debug("sql", "op", "list", "table", "jobsets", "project_id", projectID)

	rows, err := s.query(ctx,
		`SELECT `+jobsetColumns+` FROM jobsets WHERE project_id = ? ORDER BY id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobsets []*model.Jobset
	for rows.Next() {
		js, err := scanJobset(rows)
		if err != nil {
			return nil, err
		}
		jobsets = append(jobsets, js)
	}
	return jobsets, rows.Err()
}

func (s *SQLStore) UpdateJobset(ctx context.Context, js *model.Jobset) error {
	s.logger.Debug("sql", "op", "update", "table", "jobsets", "id", js.ID, "state", js.State)

	result, err := s.exec(ctx,
		`UPDATE jobsets SET name=?, description=?, flake=?, check_interval_ms=?, state=?,
		 last_checked=?, last_evaluated=?, evaluation_took=? WHERE id=?`,
		js.Name, js.Description, js.Flake, js.CheckInterval.Milliseconds(), string(js.State),
		formatTimePtr(js.LastChecked), formatTimePtr(js.LastEvaluated), js.EvaluationTook, js.ID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("jobset %d: %w", js.ID, ErrNotFound)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJobset(row rowScanner) (*model.Jobset, error) {
	var js model.Jobset
	var state string
	var intervalMS int64
	var lastChecked, lastEvaluated sql.NullString
	var took sql.NullInt64

	if err := row.Scan(&js.ID, &js.ProjectID, &js.Name, &js.Description, &js.Flake, &intervalMS, &state,
		&lastChecked, &lastEvaluated, &took); err != nil {
		return nil, err
	}
	js.State = model.JobsetState(state)
	js.CheckInterval = time.Duration(intervalMS) * time.Millisecond
	js.LastChecked = parseNullTime(lastChecked)
	js.LastEvaluated = parseNullTime(lastEvaluated)
	if took.Valid {
		v := took.Int64
		js.EvaluationTook = &v
	}
	return &js, nil
}

// --- Evaluations ---

func (s *SQLStore) CreateEvaluation(ctx context.Context, ev *model.Evaluation) error {
	s.logger.Debug("sql", "op", "insert", "table", "evaluations", "jobset_id", ev.JobsetID)

	targets := ev.Targets
	if targets == nil {
		targets = []model.TargetOutcome{}
	}
	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	return s.queryRow(ctx,
		`INSERT INTO evaluations (jobset_id, started_at, duration_ms, outcome, error, targets)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		ev.JobsetID, formatTime(ev.StartedAt), ev.DurationMS, string(ev.Outcome), ev.Error, string(targetsJSON),
	).Scan(&ev.ID)
}

func (s *SQLStore) ListEvaluations(ctx context.Context, jobsetID int64, opts model.ListOptions) ([]*model.Evaluation, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "evaluations", "jobset_id", jobsetID, "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM evaluations WHERE jobset_id = ?`, jobsetID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.query(ctx,
		`SELECT id, jobset_id, started_at, duration_ms, outcome, error, targets
		 FROM evaluations WHERE jobset_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		jobsetID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var evals []*model.Evaluation
	for rows.Next() {
		var ev model.Evaluation
		var startedAt, outcome, targetsJSON string
		if err := rows.Scan(&ev.ID, &ev.JobsetID, &startedAt, &ev.DurationMS, &outcome, &ev.Error, &targetsJSON); err != nil {
			return nil, 0, err
		}
		ev.StartedAt = parseTime(startedAt)
		ev.Outcome = model.EvaluationOutcome(outcome)
		if err := json.Unmarshal([]byte(targetsJSON), &ev.Targets); err != nil {
			return nil, 0, fmt.Errorf("unmarshal targets of evaluation %d: %w", ev.ID, err)
		}
		evals = append(evals, &ev)
	}
	return evals, total, rows.Err()
}

// --- time helpers ---

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}
