// Package models defines the core data structures for TGArchive.
//
// It includes the platform-neutral message, sender and target types shared by the
// Telegram client wrapper, the fetch loop and the console.
package models

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the layout used for transcript timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// SystemSenderName is the display name used when a message has no resolvable sender.
const SystemSenderName = "System"

// Error variables for better error handling and testability
var (
	ErrEmptyIdentifier = errors.New("target identifier cannot be empty")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
)

// Message is a single conversation message as delivered by the platform client.
type Message struct {
	ID       int
	Date     time.Time
	Text     string
	SenderID int64 // zero when the platform reports no sender

	Sticker bool
	Video   bool
	Voice   bool
}

// HasMedia reports whether the message carries sticker, video or voice media.
func (m Message) HasMedia() bool {
	return m.Sticker || m.Video || m.Voice
}

// Archivable reports whether the message belongs in a text-only transcript.
func (m Message) Archivable() bool {
	return m.Text != "" && !m.HasMedia()
}

// Timestamp returns the message date formatted for transcripts.
func (m Message) Timestamp() string {
	return m.Date.Format(TimestampLayout)
}

// Sender is a resolved message author. The concrete type is one of Person,
// Channel or Unknown.
type Sender interface {
	DisplayName() string
	isSender()
}

// Person is a user account.
type Person struct {
	First string
	Last  string
}

// DisplayName joins first and last name.
func (p Person) DisplayName() string {
	return strings.TrimSpace(p.First + " " + p.Last)
}

func (Person) isSender() {}

// Channel is a group, supergroup or broadcast channel posting under its own title.
type Channel struct {
	Title string
}

// DisplayName returns the channel title.
func (c Channel) DisplayName() string {
	return c.Title
}

func (Channel) isSender() {}

// Unknown is used for service messages and senders the platform did not return.
type Unknown struct{}

// DisplayName returns SystemSenderName.
func (Unknown) DisplayName() string {
	return SystemSenderName
}

func (Unknown) isSender() {}

// Target is the conversation being archived.
type Target struct {
	ID   int64
	Name string
}

// Key returns the progress document key for the target.
func (t Target) Key() string {
	return TargetKey(t.ID)
}

// TargetKey formats a target ID the way the progress document keys it.
func TargetKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
