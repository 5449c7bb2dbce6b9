package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gotd/td/session"
)

// SQLSessionStorage stores the Telegram MTProto session in the sessions table of
// a SQL progress store. It implements session.Storage.
type SQLSessionStorage struct {
	db     *sql.DB
	name   string
	load   string
	upsert string
}

var _ session.Storage = (*SQLSessionStorage)(nil)

// LoadSession returns session.ErrNotFound when no session was stored yet.
func (s *SQLSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, s.load, s.name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		slog.Error("Failed to load Telegram session", "error", err, "name", s.name)
		return nil, fmt.Errorf("failed to load session %s: %w", s.name, err)
	}
	return data, nil
}

func (s *SQLSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	if _, err := s.db.ExecContext(ctx, s.upsert, s.name, data, time.Now()); err != nil {
		slog.Error("Failed to store Telegram session", "error", err, "name", s.name)
		return fmt.Errorf("failed to store session %s: %w", s.name, err)
	}
	slog.Debug("Telegram session stored", "name", s.name, "bytes", len(data))
	return nil
}
