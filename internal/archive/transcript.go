package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const transcriptPermissions = 0644

// Transcript is an append-only transcript file.
type Transcript struct {
	file afero.File
	path string
}

// OpenTranscript opens path for appending, creating it and its directory if
// needed. Earlier content is never truncated.
func OpenTranscript(fs afero.Fs, path string) (*Transcript, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create transcript directory %s: %w", dir, err)
		}
	}
	f, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, transcriptPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript %s: %w", path, err)
	}
	slog.Debug("Transcript opened", "path", path)
	return &Transcript{file: f, path: path}, nil
}

// WriteLine appends line. The file is unbuffered, so the line has reached the
// OS when WriteLine returns.
func (t *Transcript) WriteLine(line string) error {
	if _, err := t.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to append to %s: %w", t.path, err)
	}
	return nil
}

func (t *Transcript) Path() string {
	return t.path
}

// Close closes the file. Calling it again is a no-op.
func (t *Transcript) Close() error {
	if t == nil || t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
