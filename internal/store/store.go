// Package store provides progress storage backends for TGArchive.
//
// A progress store remembers, per target conversation, the ID of the last message
// the fetch loop processed so the next run can resume from it. The default backend
// is a single JSON document shared by all targets; SQLite and PostgreSQL backends
// are available for installs that keep their state in a database.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/afero"
)

// DefaultProgressFileName is the name of the JSON progress document.
const DefaultProgressFileName = "progress.json"

// ErrUnreadableDocument is returned by FileStore.Save when an existing progress
// document cannot be parsed. Saving anyway would drop every other target's cursor.
var ErrUnreadableDocument = errors.New("existing progress document is unreadable")

// ProgressStore persists the last processed message ID per target.
type ProgressStore interface {
	// Load returns the saved offset for the target. found is false when nothing
	// has been saved yet or the backing document is missing or malformed.
	Load(ctx context.Context, targetKey string) (messageID int, found bool, err error)
	// Save records messageID for the target, leaving other targets untouched.
	Save(ctx context.Context, targetKey string, messageID int) error
	Close() error
}

// SessionBackend is implemented by SQL stores, which also keep the Telegram
// session in their database.
type SessionBackend interface {
	SessionStorage(name string) *SQLSessionStorage
}

var (
	_ SessionBackend = (*SQLiteStore)(nil)
	_ SessionBackend = (*PostgresStore)(nil)
)

// Opts holds configuration options for progress stores.
type Opts struct {
	FilePath string   // JSON progress document path
	Fs       afero.Fs // filesystem used by FileStore; OS filesystem when nil
	DSN      string   // database connection string for SQL backends
	Backend  string   // "sqlite" or "postgres"; detected from DSN when empty
	RunID    string   // identifier recorded with every SQL write
}

// Option defines a configuration option for progress stores.
type Option func(*Opts)

// WithFilePath sets the JSON progress document path.
func WithFilePath(path string) Option {
	return func(o *Opts) {
		o.FilePath = path
	}
}

// WithFs sets the filesystem used by the JSON backend.
func WithFs(fs afero.Fs) Option {
	return func(o *Opts) {
		o.Fs = fs
	}
}

// WithSQLiteDSN selects the SQLite backend with the given database path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Backend = BackendSQLite
	}
}

// WithPostgresDSN selects the PostgreSQL backend with the given connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Backend = BackendPostgres
	}
}

// WithRunID tags SQL writes with the given run identifier.
func WithRunID(id string) Option {
	return func(o *Opts) {
		o.RunID = id
	}
}

// SQL backend names, as reported by DetectDSNType.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// NewStore returns the backend selected by opts: the SQL backend chosen by
// WithSQLiteDSN or WithPostgresDSN (or detected from the DSN) when a DSN is
// set, otherwise the JSON file store.
func NewStore(opts ...Option) (ProgressStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("progress store: neither file path nor DSN set")
		}
		slog.Debug("Using JSON progress store", "path", cfg.FilePath)
		return NewFileStore(opts...)
	}
	backend := cfg.Backend
	if backend == "" {
		backend = DetectDSNType(cfg.DSN)
	}
	switch backend {
	case BackendPostgres:
		slog.Debug("Configuring PostgreSQL progress store", "dsn_set", true)
		return NewPostgresStore(opts...)
	case BackendSQLite:
		slog.Debug("Configuring SQLite progress store", "db_path", cfg.DSN)
		return NewSQLiteStore(opts...)
	}
	return nil, fmt.Errorf("progress store: unknown backend %q", backend)
}

// InMemoryStore is a process-local progress store, mostly useful in tests.
type InMemoryStore struct {
	mu  sync.Mutex
	doc ProgressDocument
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{doc: ProgressDocument{}}
}

func (s *InMemoryStore) Load(_ context.Context, targetKey string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.doc.Get(targetKey)
	return id, ok, nil
}

func (s *InMemoryStore) Save(_ context.Context, targetKey string, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Set(targetKey, messageID)
	return nil
}

// Snapshot returns a copy of the stored document.
func (s *InMemoryStore) Snapshot() ProgressDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

func (s *InMemoryStore) Close() error { return nil }
