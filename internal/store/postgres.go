// Package store provides progress storage backends for TGArchive.
//
// This file implements a PostgreSQL-backed progress store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 4
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 2
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db    *sql.DB
	runID string
}

var _ ProgressStore = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db, runID: cfg.RunID}, nil
}

func (s *PostgresStore) Load(ctx context.Context, targetKey string) (int, bool, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `SELECT message_id FROM progress WHERE target_id = $1`, targetKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore Load not found", "target", targetKey)
		return 0, false, nil
	}
	if err != nil {
		slog.Error("PostgresStore Load failed", "error", err, "target", targetKey)
		return 0, false, fmt.Errorf("failed to load progress for %s: %w", targetKey, err)
	}
	return id, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, targetKey string, messageID int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress (target_id, message_id, run_id, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (target_id) DO UPDATE
		SET message_id = EXCLUDED.message_id, run_id = EXCLUDED.run_id, updated_at = EXCLUDED.updated_at`,
		targetKey, messageID, nilIfEmpty(s.runID), time.Now())
	if err != nil {
		slog.Error("PostgresStore Save failed", "error", err, "target", targetKey)
		return fmt.Errorf("failed to save progress for %s: %w", targetKey, err)
	}
	slog.Debug("PostgresStore Save succeeded", "target", targetKey, "message_id", messageID)
	return nil
}

// SessionStorage returns a Telegram session storage kept in the sessions table.
func (s *PostgresStore) SessionStorage(name string) *SQLSessionStorage {
	return &SQLSessionStorage{
		db:   s.db,
		name: name,
		load: `SELECT data FROM sessions WHERE name = $1`,
		upsert: `INSERT INTO sessions (name, data, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
	}
}

// Close closes the Postgres connection pool.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
