package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/TGArchive/internal/models"
)

func TestMarkedPeerID(t *testing.T) {
	assert.Equal(t, int64(42), markedPeerID(&tg.PeerUser{UserID: 42}))
	assert.Equal(t, int64(-42), markedPeerID(&tg.PeerChat{ChatID: 42}))
	assert.Equal(t, int64(-1000000000042), markedPeerID(&tg.PeerChannel{ChannelID: 42}))
	assert.Zero(t, markedPeerID(nil))

	assert.Equal(t, int64(42), rawPeerID(&tg.PeerChannel{ChannelID: 42}))
}

func TestConvertTextMessage(t *testing.T) {
	msg := &tg.Message{ID: 7, Date: 1709294400, Message: "hello\nworld", PeerID: &tg.PeerUser{UserID: 5}}
	msg.SetFromID(&tg.PeerChannel{ChannelID: 9})

	got := convertMessage(msg, 1)
	assert.Equal(t, models.Message{
		ID:       7,
		Date:     time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
		Text:     "hello\nworld",
		SenderID: -1000000000009,
	}, got)
	assert.True(t, got.Archivable())
}

func TestConvertSenderFallbacks(t *testing.T) {
	incoming := &tg.Message{ID: 1, Message: "hi", PeerID: &tg.PeerUser{UserID: 5}}
	assert.Equal(t, int64(5), convertMessage(incoming, 1).SenderID, "private incoming message is from the peer")

	outgoing := &tg.Message{ID: 2, Message: "hi", PeerID: &tg.PeerUser{UserID: 5}}
	outgoing.SetOut(true)
	assert.Equal(t, int64(1), convertMessage(outgoing, 1).SenderID, "outgoing message is from us")

	service := &tg.MessageService{ID: 3, PeerID: &tg.PeerChat{ChatID: 8}}
	got := convertMessage(service, 1)
	assert.Equal(t, int64(-8), got.SenderID)
	assert.False(t, got.Archivable(), "service messages carry no text")
}

func TestConvertMediaKinds(t *testing.T) {
	tests := []struct {
		name  string
		media tg.MessageMediaClass
		want  models.Message
	}{
		{
			name:  "sticker",
			media: &tg.MessageMediaDocument{Document: &tg.Document{Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeSticker{}}}},
			want:  models.Message{Sticker: true},
		},
		{
			name:  "voice note",
			media: &tg.MessageMediaDocument{Document: &tg.Document{Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{Voice: true}}}},
			want:  models.Message{Voice: true},
		},
		{
			name:  "music is not voice",
			media: &tg.MessageMediaDocument{Document: &tg.Document{Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{}}}},
			want:  models.Message{},
		},
		{
			name:  "video attribute",
			media: &tg.MessageMediaDocument{Document: &tg.Document{Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeVideo{}}}},
			want:  models.Message{Video: true},
		},
		{
			name:  "round flag",
			media: &tg.MessageMediaDocument{Round: true, Document: &tg.DocumentEmpty{}},
			want:  models.Message{Video: true},
		},
		{
			name:  "photo",
			media: &tg.MessageMediaPhoto{},
			want:  models.Message{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &tg.Message{ID: 1, Message: "caption", PeerID: &tg.PeerUser{UserID: 5}}
			msg.SetMedia(tt.media)
			got := convertMessage(msg, 0)
			assert.Equal(t, tt.want.Sticker, got.Sticker, "sticker")
			assert.Equal(t, tt.want.Video, got.Video, "video")
			assert.Equal(t, tt.want.Voice, got.Voice, "voice")
		})
	}
}

func TestEntityCacheSender(t *testing.T) {
	ents := newEntityCache()
	ents.merge(peer.NewEntities(
		map[int64]*tg.User{5: {ID: 5, FirstName: "Ada", LastName: "Lovelace"}},
		map[int64]*tg.Chat{8: {ID: 8, Title: "Family"}},
		map[int64]*tg.Channel{9: {ID: 9, Title: "News"}},
	))

	tests := []struct {
		name string
		id   int64
		want models.Sender
		ok   bool
	}{
		{"user", 5, models.Person{First: "Ada", Last: "Lovelace"}, true},
		{"group", -8, models.Channel{Title: "Family"}, true},
		{"channel", -1000000000009, models.Channel{Title: "News"}, true},
		{"no sender", 0, models.Unknown{}, true},
		{"unknown user", 6, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ents.sender(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntityCacheTarget(t *testing.T) {
	ada := &tg.User{ID: 5, FirstName: "Ada"}
	ada.SetAccessHash(77)
	news := &tg.Channel{ID: 9, Title: "News"}
	news.SetAccessHash(99)

	ents := newEntityCache()
	ents.addUser(ada)
	ents.addUser(&tg.User{ID: 6})
	ents.merge(peer.NewEntities(nil, nil, map[int64]*tg.Channel{9: news}))

	input, target, ok := ents.target(&tg.PeerUser{UserID: 5})
	require.True(t, ok)
	assert.Equal(t, models.Target{ID: 5, Name: "Ada"}, target)
	assert.Equal(t, &tg.InputPeerUser{UserID: 5, AccessHash: 77}, input)

	_, target, ok = ents.target(&tg.PeerUser{UserID: 6})
	require.True(t, ok)
	assert.Equal(t, "Unknown", target.Name)

	input, target, ok = ents.target(&tg.PeerChannel{ChannelID: 9})
	require.True(t, ok)
	assert.Equal(t, models.Target{ID: 9, Name: "News"}, target)
	assert.Equal(t, &tg.InputPeerChannel{ChannelID: 9, AccessHash: 99}, input)

	_, _, ok = ents.target(&tg.PeerChat{ChatID: 1})
	assert.False(t, ok)
}

func TestConversationResolveSender(t *testing.T) {
	conv := &Conversation{entities: newEntityCache()}
	conv.entities.addUser(&tg.User{ID: 5, FirstName: "Ada"})

	s, err := conv.ResolveSender(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Ada", s.DisplayName())

	s, err = conv.ResolveSender(context.Background(), 404)
	require.NoError(t, err)
	assert.Equal(t, models.SystemSenderName, s.DisplayName())
}
