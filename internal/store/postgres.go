package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// NewPostgresStore connects to PostgreSQL using a lib/pq DSN, e.g.
// "postgres://flakeci@localhost/flakeci?sslmode=disable".
func NewPostgresStore(dsn string, logger *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLStore(db, postgresDialect{}, logger), nil
}

// Open returns the store for driver ("sqlite" or "postgres").
func Open(driver, dsn string, logger *slog.Logger) (*SQLStore, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLiteStore(dsn, logger)
	case "postgres":
		return NewPostgresStore(dsn, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
