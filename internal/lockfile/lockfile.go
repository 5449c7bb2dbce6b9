// Package lockfile guards a TGArchive state directory with an exclusive flock.
//
// The progress document is rewritten as a whole on every save, so two archiver
// processes sharing a state directory would silently lose each other's cursors.
// The lock is held for the whole run and released by the kernel if the process dies.
package lockfile

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "tgarchive.lock"

const maxAcquireAttempts = 5

// Holder describes the process recorded in a lock file.
type Holder struct {
	PID   int
	RunID string
}

func (h Holder) String() string {
	if h.PID == 0 {
		return "unknown process"
	}
	state := "not running, stale lock"
	if isProcessRunning(h.PID) {
		state = "running"
	}
	if h.RunID != "" {
		return fmt.Sprintf("PID %d, run %s (%s)", h.PID, h.RunID, state)
	}
	return fmt.Sprintf("PID %d (%s)", h.PID, state)
}

// Lock is an acquired state directory lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the lock for stateDir, creating the directory if needed. When
// another process holds it, the error is a *LockError describing that process.
func Acquire(stateDir, runID string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	var file *os.File
	for attempt := 0; ; attempt++ {
		f, err := openLockFile(lockPath)
		if err != nil {
			return nil, err
		}
		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			holder := readHolder(lockPath)
			f.Close()
			slog.Warn("State directory is locked by another archiver", "lock_path", lockPath, "holder", holder.String())
			return nil, &LockError{LockPath: lockPath, Holder: holder, Cause: err}
		}
		// The previous holder may have removed the file between our open and
		// flock, leaving us with a lock on an unlinked inode.
		if isCurrent(f, lockPath) {
			file = f
			break
		}
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		if attempt == maxAcquireAttempts-1 {
			return nil, fmt.Errorf("lock file %s kept being replaced while acquiring it", lockPath)
		}
		slog.Debug("Lock file replaced while acquiring, retrying", "lock_path", lockPath, "attempt", attempt+1)
	}

	if err := writeHolder(file, Holder{PID: os.Getpid(), RunID: runID}); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Debug("Acquired state directory lock", "lock_path", lockPath, "pid", os.Getpid(), "run_id", runID)
	return &Lock{file: file, path: lockPath}, nil
}

// Release unlocks and removes the lock file. Calling it again is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Removed while still locked; Acquire rejects a lock won on the unlinked file.
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove lock file", "error", err, "lock_path", l.path)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("Failed to release flock", "error", err, "lock_path", l.path)
	}
	err := l.file.Close()
	l.file = nil
	slog.Debug("Released state directory lock", "lock_path", l.path)
	return err
}

// openLockFile opens or creates the lock file without truncating it, so the
// holder's details survive a failed attempt.
func openLockFile(lockPath string) (*os.File, error) {
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}
	return file, nil
}

// isCurrent reports whether f is still the file linked at path.
func isCurrent(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	linked, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, linked)
}

// LockError is returned when another process holds the state directory lock.
type LockError struct {
	LockPath string
	Holder   Holder
	Cause    error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("another TGArchive run is using this state directory (%s).\n"+
		"Lock file: %s\n"+
		"If that process is gone the lock is stale and can be removed with:\n  rm %s",
		e.Holder, e.LockPath, e.LockPath)
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

func writeHolder(f *os.File, h Holder) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "pid=%d\nrun_id=%s\n", h.PID, h.RunID); err != nil {
		return err
	}
	return f.Sync()
}

func readHolder(lockPath string) Holder {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return Holder{}
	}
	return parseHolder(string(data))
}

// parseHolder reads key=value lines; unknown keys and bad values are ignored.
func parseHolder(content string) Holder {
	var h Holder
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			if pid, err := strconv.Atoi(value); err == nil && pid > 0 {
				h.PID = pid
			}
		case "run_id":
			h.RunID = value
		}
	}
	return h
}

// isProcessRunning probes pid with signal 0.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
