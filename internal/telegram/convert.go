package telegram

import (
	"maps"
	"strings"
	"time"

	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/tg"

	"github.com/BTreeMap/TGArchive/internal/models"
)

// channelIDOffset is subtracted from channel IDs to build marked peer IDs.
const channelIDOffset = 1000000000000

// markedPeerID maps a peer to a single signed ID space: users are positive,
// basic groups are -id and channels are -(1e12 + id).
func markedPeerID(p tg.PeerClass) int64 {
	switch p := p.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -(channelIDOffset + p.ChannelID)
	}
	return 0
}

// rawPeerID returns the unmarked ID of p.
func rawPeerID(p tg.PeerClass) int64 {
	switch p := p.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return p.ChatID
	case *tg.PeerChannel:
		return p.ChannelID
	}
	return 0
}

// convertMessage flattens a platform message. selfID is the logged in account,
// the author of outgoing private messages that carry no sender.
func convertMessage(msg tg.NotEmptyMessage, selfID int64) models.Message {
	m := models.Message{
		ID:   msg.GetID(),
		Date: time.Unix(int64(msg.GetDate()), 0).UTC(),
	}
	if from, ok := msg.GetFromID(); ok {
		m.SenderID = markedPeerID(from)
	} else if msg.GetOut() && selfID != 0 {
		m.SenderID = selfID
	} else {
		m.SenderID = markedPeerID(msg.GetPeerID())
	}

	// Service messages carry no text and end up skipped.
	regular, ok := msg.(*tg.Message)
	if !ok {
		return m
	}
	m.Text = regular.Message
	if media, ok := regular.GetMedia(); ok {
		m.Sticker, m.Video, m.Voice = mediaKinds(media)
	}
	return m
}

func mediaKinds(media tg.MessageMediaClass) (sticker, video, voice bool) {
	doc, ok := media.(*tg.MessageMediaDocument)
	if !ok {
		return false, false, false
	}
	video = doc.Video || doc.Round
	voice = doc.Voice
	d, ok := doc.Document.(*tg.Document)
	if !ok {
		return sticker, video, voice
	}
	for _, attr := range d.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeSticker:
			sticker = true
		case *tg.DocumentAttributeVideo:
			video = true
		case *tg.DocumentAttributeAudio:
			voice = voice || a.Voice
		}
	}
	return sticker, video, voice
}

// entityCache accumulates users, groups and channels seen in API responses.
type entityCache struct {
	users    map[int64]*tg.User
	chats    map[int64]*tg.Chat
	channels map[int64]*tg.Channel
}

func newEntityCache() *entityCache {
	return &entityCache{
		users:    map[int64]*tg.User{},
		chats:    map[int64]*tg.Chat{},
		channels: map[int64]*tg.Channel{},
	}
}

func (e *entityCache) merge(ent peer.Entities) {
	maps.Copy(e.users, ent.Users())
	maps.Copy(e.chats, ent.Chats())
	maps.Copy(e.channels, ent.Channels())
}

func (e *entityCache) addUser(u *tg.User) {
	if u != nil {
		e.users[u.ID] = u
	}
}

// sender classifies the entity behind a marked peer ID.
func (e *entityCache) sender(markedID int64) (models.Sender, bool) {
	switch {
	case markedID == 0:
		return models.Unknown{}, true
	case markedID > 0:
		if u, ok := e.users[markedID]; ok {
			return models.Person{First: u.FirstName, Last: u.LastName}, true
		}
	case markedID < -channelIDOffset:
		if c, ok := e.channels[-markedID-channelIDOffset]; ok {
			return models.Channel{Title: c.Title}, true
		}
	default:
		if c, ok := e.chats[-markedID]; ok {
			return models.Channel{Title: c.Title}, true
		}
	}
	return nil, false
}

// userName joins first and last names, falling back to "Unknown".
func userName(u *tg.User) string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return "Unknown"
}
