// Package archive implements the resumable fetch loop that turns a conversation's
// newest-first message stream into an append-only text transcript.
//
// The loop saves the ID of every message it starts processing, before any
// content filtering, so an interrupted run resumes without skipping anything.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/TGArchive/internal/models"
	"github.com/BTreeMap/TGArchive/internal/store"
)

// MessageIterator is a lazy newest-first message sequence.
type MessageIterator interface {
	Next(ctx context.Context) bool
	Value() models.Message
	Err() error
}

// SenderResolver looks up who sent a message. senderID zero means the platform
// reported no sender.
type SenderResolver interface {
	ResolveSender(ctx context.Context, senderID int64) (models.Sender, error)
}

// Source is one conversation on the messaging platform.
type Source interface {
	SenderResolver
	// Messages iterates messages older than offsetID (when non-zero) and sent
	// before offsetDate (when non-zero), newest first.
	Messages(offsetID int, offsetDate time.Time) MessageIterator
}

// LineWriter receives formatted transcript lines. Each call must reach durable
// storage, or at least the OS, before it returns.
type LineWriter interface {
	WriteLine(line string) error
}

// Entry describes one written line for live display.
type Entry struct {
	MessageID int
	Timestamp string
	Sender    string
	Preview   string
}

// Request describes one archiving run.
type Request struct {
	Target models.Target
	Window models.Window
	Output LineWriter
}

// Archiver runs the fetch loop against a progress store.
type Archiver struct {
	store    store.ProgressStore
	now      func() time.Time
	observer func(Entry)
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		a.now = now
	}
}

// WithObserver registers a callback invoked after every written line.
func WithObserver(fn func(Entry)) Option {
	return func(a *Archiver) {
		a.observer = fn
	}
}

// New creates an Archiver saving progress to st.
func New(st store.ProgressStore, opts ...Option) *Archiver {
	a := &Archiver{store: st, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ResolveStartOffset picks the message ID to resume from. An explicit window is
// a fresh query and always starts from the newest message.
func ResolveStartOffset(saved int, found bool, window models.Window) int {
	if window.IsSet() || !found {
		return 0
	}
	return saved
}

// Run archives req.Target from src into req.Output. The returned Summary is
// valid even when err is non-nil; it then covers the messages handled before the
// failure or interruption.
func (a *Archiver) Run(ctx context.Context, src Source, req Request) (summary Summary, err error) {
	key := req.Target.Key()
	log := slog.With("target", key)

	saved, found, err := a.store.Load(ctx, key)
	if err != nil {
		// Not fatal: starting from the top only re-reads messages.
		log.Warn("Failed to load progress, starting from the newest message", "error", err)
		found = false
	}
	summary = Summary{StartOffset: ResolveStartOffset(saved, found, req.Window), Window: req.Window}
	if found && req.Window.IsSet() {
		log.Info("Date window set, ignoring saved progress", "saved_offset", saved, "window", req.Window.String())
	}

	var offsetDate time.Time
	if req.Window.IsSet() {
		offsetDate = req.Window.End
	}

	log.Info("Fetch started", "offset_id", summary.StartOffset, "window", req.Window.String())
	started := a.now()
	defer func() {
		summary.Elapsed = a.now().Sub(started)
	}()

	cache := NewSenderCache(src)
	it := src.Messages(summary.StartOffset, offsetDate)
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if !it.Next(ctx) {
			break
		}
		msg := it.Value()

		if req.Window.Excludes(msg.Date) {
			summary.ReachedWindowStart = true
			log.Info("Reached window start", "message_id", msg.ID, "date", msg.Date)
			break
		}

		summary.LastOffset = msg.ID
		if err := a.store.Save(ctx, key, msg.ID); err != nil {
			summary.SaveFailures++
			log.Warn("Failed to save progress", "error", err, "message_id", msg.ID)
		}

		if !msg.Archivable() {
			summary.Skipped++
			continue
		}

		name, err := cache.Name(ctx, msg.SenderID)
		if err != nil {
			return summary, fmt.Errorf("failed to resolve sender %d of message %d: %w", msg.SenderID, msg.ID, err)
		}

		ts := msg.Timestamp()
		if err := req.Output.WriteLine(FormatLine(ts, name, msg.Text)); err != nil {
			return summary, fmt.Errorf("failed to write message %d: %w", msg.ID, err)
		}
		summary.record(ts)

		if a.observer != nil {
			a.observer(Entry{MessageID: msg.ID, Timestamp: ts, Sender: name, Preview: Preview(msg.Text)})
		}
	}
	if err := it.Err(); err != nil {
		return summary, fmt.Errorf("message stream failed: %w", err)
	}
	log.Info("Fetch finished", "written", summary.Count, "skipped", summary.Skipped, "last_offset", summary.LastOffset)
	return summary, nil
}
