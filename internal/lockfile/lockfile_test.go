package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireWritesHolder(t *testing.T) {
	tempDir := t.TempDir()

	lock, err := Acquire(tempDir, "run-a")
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	content, err := os.ReadFile(filepath.Join(tempDir, LockFileName))
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	expected := fmt.Sprintf("pid=%d\nrun_id=run-a\n", os.Getpid())
	if string(content) != expected {
		t.Errorf("Lock file content mismatch. Expected: %q, Got: %q", expected, string(content))
	}
}

func TestAcquireConflict(t *testing.T) {
	tempDir := t.TempDir()

	lock1, err := Acquire(tempDir, "first")
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2, err := Acquire(tempDir, "second")
	if err == nil {
		lock2.Release()
		t.Fatalf("Second lock acquisition should have failed")
	}

	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("Expected LockError, got: %T", err)
	}
	if lockErr.Holder.PID != os.Getpid() || lockErr.Holder.RunID != "first" {
		t.Errorf("holder = %+v, want our pid and run first", lockErr.Holder)
	}
	msg := err.Error()
	if !strings.Contains(msg, "another TGArchive run") || !strings.Contains(msg, tempDir) {
		t.Errorf("error message lacks context: %s", msg)
	}

	// The failed attempt must not have clobbered the holder's details.
	content, _ := os.ReadFile(filepath.Join(tempDir, LockFileName))
	if !strings.Contains(string(content), "run_id=first") {
		t.Errorf("lock file was overwritten by the loser: %q", content)
	}
}

func TestReleaseAndReacquire(t *testing.T) {
	tempDir := t.TempDir()
	lockPath := filepath.Join(tempDir, LockFileName)

	lock, err := Acquire(tempDir, "")
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("Failed to release lock: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("Lock file should be removed after release: %s", lockPath)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("Multiple releases should be safe: %v", err)
	}

	lock2, err := Acquire(tempDir, "")
	if err != nil {
		t.Fatalf("Failed to reacquire lock after release: %v", err)
	}
	lock2.Release()
}

func TestAcquireCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	lock, err := Acquire(dir, "")
	if err != nil {
		t.Fatalf("Should be able to create directory and acquire lock: %v", err)
	}
	defer lock.Release()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Directory should have been created: %v", err)
	}
}

func TestParseHolder(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Holder
	}{
		{"pid and run", "pid=12345\nrun_id=abc\n", Holder{PID: 12345, RunID: "abc"}},
		{"pid only", "pid=67890", Holder{PID: 67890}},
		{"invalid pid", "pid=abc\nrun_id=x", Holder{RunID: "x"}},
		{"negative pid", "pid=-4", Holder{}},
		{"no equals", "pid12345", Holder{}},
		{"empty", "", Holder{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseHolder(tt.content); got != tt.want {
				t.Errorf("parseHolder(%q) = %+v, want %+v", tt.content, got, tt.want)
			}
		})
	}
}

func TestHolderString(t *testing.T) {
	if got := (Holder{}).String(); got != "unknown process" {
		t.Errorf("zero holder = %q", got)
	}
	got := Holder{PID: os.Getpid(), RunID: "r1"}.String()
	if !strings.Contains(got, "running") || !strings.Contains(got, "r1") {
		t.Errorf("holder string = %q", got)
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !isProcessRunning(os.Getpid()) {
		t.Errorf("Our own process should be detected as running")
	}
}

func TestIsCurrentDetectsReplacedFile(t *testing.T) {
	tempDir := t.TempDir()
	lockPath := filepath.Join(tempDir, LockFileName)

	stale, err := openLockFile(lockPath)
	if err != nil {
		t.Fatalf("Failed to open lock file: %v", err)
	}
	defer stale.Close()
	if !isCurrent(stale, lockPath) {
		t.Fatalf("freshly opened lock file should be current")
	}

	// A releasing holder unlinks the file while another process still has it open.
	if err := os.Remove(lockPath); err != nil {
		t.Fatalf("Failed to remove lock file: %v", err)
	}
	if isCurrent(stale, lockPath) {
		t.Errorf("unlinked lock file should not be current")
	}

	fresh, err := openLockFile(lockPath)
	if err != nil {
		t.Fatalf("Failed to recreate lock file: %v", err)
	}
	defer fresh.Close()
	if isCurrent(stale, lockPath) {
		t.Errorf("lock file replaced at the same path should not be current")
	}
	if !isCurrent(fresh, lockPath) {
		t.Errorf("recreated lock file should be current")
	}
}

func TestAcquireAfterReleaseWhileOpenElsewhere(t *testing.T) {
	tempDir := t.TempDir()
	lockPath := filepath.Join(tempDir, LockFileName)

	first, err := Acquire(tempDir, "first")
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	// Simulates a contender that opened the file before the holder released it.
	stale, err := openLockFile(lockPath)
	if err != nil {
		t.Fatalf("Failed to open lock file: %v", err)
	}
	defer stale.Close()
	if err := first.Release(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}

	second, err := Acquire(tempDir, "second")
	if err != nil {
		t.Fatalf("Failed to acquire lock after release: %v", err)
	}
	defer second.Release()

	if isCurrent(stale, lockPath) {
		t.Errorf("stale handle should not refer to the live lock file")
	}
	content, _ := os.ReadFile(lockPath)
	if !strings.Contains(string(content), "run_id=second") {
		t.Errorf("lock file = %q, want the second run as holder", content)
	}
}
