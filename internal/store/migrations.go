package store

import (
	"context"
	"database/sql"
	"fmt"
)

// sqliteSchema contains the DDL for the SQLite backend.
// Each statement uses IF NOT EXISTS for idempotency.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS jobsets (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id        INTEGER NOT NULL REFERENCES projects(id),
		name              TEXT NOT NULL,
		description       TEXT NOT NULL DEFAULT '',
		flake             TEXT NOT NULL,
		check_interval_ms INTEGER NOT NULL DEFAULT 0,
		state             TEXT NOT NULL DEFAULT 'UNKNOWN',
		last_checked      TEXT,
		last_evaluated    TEXT,
		evaluation_took   INTEGER,
		UNIQUE (project_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS evaluations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		jobset_id   INTEGER NOT NULL REFERENCES jobsets(id),
		started_at  TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome     TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		targets     TEXT NOT NULL DEFAULT '[]'
	)`,

	`CREATE INDEX IF NOT EXISTS idx_jobsets_project_id ON jobsets(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_jobsets_state ON jobsets(state)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluations_jobset_id ON evaluations(jobset_id)`,
}

// postgresSchema mirrors sqliteSchema with PostgreSQL types.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS jobsets (
		id                BIGSERIAL PRIMARY KEY,
		project_id        BIGINT NOT NULL REFERENCES projects(id),
		name              TEXT NOT NULL,
		description       TEXT NOT NULL DEFAULT '',
		flake             TEXT NOT NULL,
		check_interval_ms BIGINT NOT NULL DEFAULT 0,
		state             TEXT NOT NULL DEFAULT 'UNKNOWN',
		last_checked      TEXT,
		last_evaluated    TEXT,
		evaluation_took   BIGINT,
		UNIQUE (project_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS evaluations (
		id          BIGSERIAL PRIMARY KEY,
		jobset_id   BIGINT NOT NULL REFERENCES jobsets(id),
		started_at  TEXT NOT NULL,
		duration_ms BIGINT NOT NULL,
		outcome     TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		targets     TEXT NOT NULL DEFAULT '[]'
	)`,

	`CREATE INDEX IF NOT EXISTS idx_jobsets_project_id ON jobsets(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_jobsets_state ON jobsets(state)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluations_jobset_id ON evaluations(jobset_id)`,
}

// migrate executes all schema DDL statements for the dialect.
func migrate(ctx context.Context, db *sql.DB, d dialect) error {
	for i, stmt := range d.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migration %d: %w", d.name(), i, err)
		}
	}
	return nil
}
