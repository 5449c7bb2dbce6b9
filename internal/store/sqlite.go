// Package store provides progress storage backends for TGArchive.
//
// This file implements an SQLite-backed progress store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db    *sql.DB
	runID string
}

var _ ProgressStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db, runID: cfg.RunID}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, targetKey string) (int, bool, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `SELECT message_id FROM progress WHERE target_id = ?`, targetKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("SQLiteStore Load not found", "target", targetKey)
		return 0, false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore Load failed", "error", err, "target", targetKey)
		return 0, false, fmt.Errorf("failed to load progress for %s: %w", targetKey, err)
	}
	slog.Debug("SQLiteStore Load found", "target", targetKey, "message_id", id)
	return id, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, targetKey string, messageID int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO progress (target_id, message_id, run_id, updated_at) VALUES (?, ?, ?, ?)`,
		targetKey, messageID, nilIfEmpty(s.runID), time.Now())
	if err != nil {
		slog.Error("SQLiteStore Save failed", "error", err, "target", targetKey)
		return fmt.Errorf("failed to save progress for %s: %w", targetKey, err)
	}
	slog.Debug("SQLiteStore Save succeeded", "target", targetKey, "message_id", messageID)
	return nil
}

// SessionStorage returns a Telegram session storage kept in the sessions table.
func (s *SQLiteStore) SessionStorage(name string) *SQLSessionStorage {
	return &SQLSessionStorage{
		db:     s.db,
		name:   name,
		load:   `SELECT data FROM sessions WHERE name = ?`,
		upsert: `INSERT OR REPLACE INTO sessions (name, data, updated_at) VALUES (?, ?, ?)`,
	}
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
