package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/tg"

	"github.com/BTreeMap/TGArchive/internal/models"
)

// ErrTargetNotFound is returned when an identifier matches no reachable chat.
var ErrTargetNotFound = errors.New("failed to find target")

// TargetHints are shown to the user when a target cannot be found.
var TargetHints = []string{
	"Try using the username (e.g. @username) instead of the ID.",
	"Make sure you have a chat history or a shared group with this person.",
	"Try sending them a 'Hi' first from your Telegram app.",
}

const dialogBatchSize = 100

// identifier is a parsed target reference; exactly one field is set.
type identifier struct {
	ID       int64
	Username string
	Phone    string
}

// parseIdentifier accepts a numeric ID (marked IDs may be negative), a phone
// number with a leading '+', or a username with an optional '@' or t.me link.
func parseIdentifier(raw string) (identifier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return identifier{}, models.ErrEmptyIdentifier
	}
	if digits := strings.ReplaceAll(raw, "-", ""); isDigits(digits) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return identifier{}, fmt.Errorf("%w: invalid numeric ID %q", ErrTargetNotFound, raw)
		}
		return identifier{ID: id}, nil
	}
	if phone, ok := strings.CutPrefix(raw, "+"); ok {
		phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
		if isDigits(phone) {
			return identifier{Phone: phone}, nil
		}
	}
	name := raw
	for _, prefix := range []string{"https://", "http://", "t.me/", "@"} {
		name = strings.TrimPrefix(name, prefix)
	}
	if name == "" {
		return identifier{}, models.ErrEmptyIdentifier
	}
	return identifier{Username: name}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ResolveTarget finds the chat named by raw. It must run inside Run after
// Authorize. Failures wrap ErrTargetNotFound.
func (c *Client) ResolveTarget(ctx context.Context, raw string) (*Conversation, error) {
	id, err := parseIdentifier(raw)
	if err != nil {
		return nil, err
	}
	self, err := c.Self(ctx)
	if err != nil {
		return nil, err
	}
	ents := newEntityCache()
	ents.addUser(self)

	api := c.API()
	var p tg.PeerClass
	switch {
	case id.Username != "":
		slog.Debug("Resolving username", "username", id.Username)
		resolved, err := api.ContactsResolveUsername(ctx, id.Username)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrTargetNotFound, raw, err)
		}
		ents.merge(peer.EntitiesFromResult(resolved))
		p = resolved.Peer
	case id.Phone != "":
		slog.Debug("Resolving phone number")
		resolved, err := api.ContactsResolvePhone(ctx, id.Phone)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrTargetNotFound, raw, err)
		}
		ents.merge(peer.EntitiesFromResult(resolved))
		p = resolved.Peer
	default:
		p, err = findDialog(ctx, api, id.ID, ents)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrTargetNotFound, raw, err)
		}
	}

	input, target, ok := ents.target(p)
	if !ok {
		return nil, fmt.Errorf("%w %q: no entity for peer %d", ErrTargetNotFound, raw, markedPeerID(p))
	}
	slog.Info("Target resolved", "target_id", target.ID, "name", target.Name)
	return &Conversation{
		api:       api,
		peer:      input,
		target:    target,
		selfID:    self.ID,
		batchSize: c.cfg.BatchSize,
		entities:  ents,
	}, nil
}

// findDialog walks the account's dialogs for a peer whose marked or raw ID is id.
func findDialog(ctx context.Context, api *tg.Client, id int64, ents *entityCache) (tg.PeerClass, error) {
	slog.Debug("Searching dialogs for ID", "id", id)
	it := query.GetDialogs(api).BatchSize(dialogBatchSize).Iter()
	for it.Next(ctx) {
		elem := it.Value()
		p := elem.Dialog.GetPeer()
		if markedPeerID(p) == id || rawPeerID(p) == id {
			ents.merge(elem.Entities)
			return p, nil
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to list dialogs: %w", err)
	}
	return nil, fmt.Errorf("no dialog with ID %d", id)
}

// target builds the input peer and Target for p from cached entities.
func (e *entityCache) target(p tg.PeerClass) (tg.InputPeerClass, models.Target, bool) {
	switch p := p.(type) {
	case *tg.PeerUser:
		if u, ok := e.users[p.UserID]; ok {
			return u.AsInputPeer(), models.Target{ID: u.ID, Name: userName(u)}, true
		}
	case *tg.PeerChat:
		if c, ok := e.chats[p.ChatID]; ok {
			return c.AsInputPeer(), models.Target{ID: c.ID, Name: c.Title}, true
		}
	case *tg.PeerChannel:
		if c, ok := e.channels[p.ChannelID]; ok {
			return c.AsInputPeer(), models.Target{ID: c.ID, Name: c.Title}, true
		}
	}
	return nil, models.Target{}, false
}
