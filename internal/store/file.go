package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// Constants for the JSON file store
const (
	// DefaultDirPermissions defines the default permissions for state directories
	DefaultDirPermissions = 0755
	// DefaultFilePermissions defines the permissions of the progress document
	DefaultFilePermissions = 0644
)

// FileStore keeps every target's offset in one JSON document. Each Save is a
// read-modify-write of the whole document followed by an atomic rename.
type FileStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

var _ ProgressStore = (*FileStore)(nil)

// NewFileStore creates a JSON progress store. The document itself is created on
// the first Save.
func NewFileStore(opts ...Option) (*FileStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.FilePath == "" {
		slog.Error("FileStore path not set")
		return nil, fmt.Errorf("progress file path not set")
	}
	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	dir := filepath.Dir(cfg.FilePath)
	if err := fsys.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create progress directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create progress directory: %w", err)
	}
	slog.Debug("FileStore ready", "path", cfg.FilePath)
	return &FileStore{fs: fsys, path: cfg.FilePath}, nil
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the saved offset for targetKey. A missing or malformed document
// means no prior progress and is not an error.
func (s *FileStore) Load(_ context.Context, targetKey string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		slog.Warn("Ignoring unreadable progress document", "error", err, "path", s.path)
		return 0, false, nil
	}
	id, ok := doc.Get(targetKey)
	slog.Debug("FileStore Load", "target", targetKey, "found", ok, "message_id", id)
	return id, ok, nil
}

// Save merges messageID for targetKey into the document. If the existing
// document cannot be parsed the save fails rather than replacing it.
func (s *FileStore) Save(_ context.Context, targetKey string, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		slog.Error("FileStore Save refused, existing document unreadable", "error", err, "path", s.path)
		return fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	doc.Set(targetKey, messageID)

	data, err := doc.Encode()
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, DefaultFilePermissions); err != nil {
		slog.Error("FileStore Save write failed", "error", err, "path", tmp)
		return fmt.Errorf("failed to write progress document: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		slog.Error("FileStore Save rename failed", "error", err, "path", s.path)
		return fmt.Errorf("failed to replace progress document: %w", err)
	}
	slog.Debug("FileStore Save succeeded", "target", targetKey, "message_id", messageID)
	return nil
}

// read loads the whole document. A missing file is an empty document.
func (s *FileStore) read() (ProgressDocument, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ProgressDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress document: %w", err)
	}
	return DecodeProgressDocument(data)
}

func (s *FileStore) Close() error { return nil }
