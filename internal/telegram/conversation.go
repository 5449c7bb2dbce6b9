package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/telegram/query/messages"
	"github.com/gotd/td/tg"

	"github.com/BTreeMap/TGArchive/internal/archive"
	"github.com/BTreeMap/TGArchive/internal/models"
)

// Conversation is a resolved chat whose history can be archived. It
// implements archive.Source.
type Conversation struct {
	api       *tg.Client
	peer      tg.InputPeerClass
	target    models.Target
	selfID    int64
	batchSize int
	entities  *entityCache
}

var _ archive.Source = (*Conversation)(nil)

func (c *Conversation) Target() models.Target {
	return c.target
}

// Messages pages through the chat history, newest first.
func (c *Conversation) Messages(offsetID int, offsetDate time.Time) archive.MessageIterator {
	b := query.Messages(c.api).GetHistory(c.peer).BatchSize(c.batchSize).OffsetID(offsetID)
	if !offsetDate.IsZero() {
		b = b.OffsetDate(int(offsetDate.Unix()))
	}
	slog.Debug("Requesting history", "target", c.target.Key(), "offset_id", offsetID, "offset_date", offsetDate)
	return &historyIterator{conv: c, it: b.Iter()}
}

// ResolveSender names the author of a message from the entities delivered
// alongside the history pages.
func (c *Conversation) ResolveSender(_ context.Context, senderID int64) (models.Sender, error) {
	if s, ok := c.entities.sender(senderID); ok {
		return s, nil
	}
	// Telegram always ships the authors of a page with it, so a miss means an
	// account hidden from us.
	slog.Warn("Sender not found in history entities", "sender_id", senderID)
	return models.Unknown{}, nil
}

type historyIterator struct {
	conv *Conversation
	it   *messages.Iterator
	cur  models.Message
}

func (h *historyIterator) Next(ctx context.Context) bool {
	if !h.it.Next(ctx) {
		return false
	}
	elem := h.it.Value()
	h.conv.entities.merge(elem.Entities)
	h.cur = convertMessage(elem.Msg, h.conv.selfID)
	return true
}

func (h *historyIterator) Value() models.Message {
	return h.cur
}

func (h *historyIterator) Err() error {
	if err := h.it.Err(); err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}
	return nil
}
