package archive

import (
	"context"
)

// SenderCache maps sender IDs to display names for the length of one run.
// Each distinct ID reaches the resolver at most once.
type SenderCache struct {
	resolver SenderResolver
	names    map[int64]string
}

func NewSenderCache(resolver SenderResolver) *SenderCache {
	return &SenderCache{resolver: resolver, names: make(map[int64]string)}
}

// Name returns the display name of senderID, resolving it on first use.
// Failed lookups are not cached.
func (c *SenderCache) Name(ctx context.Context, senderID int64) (string, error) {
	if name, ok := c.names[senderID]; ok {
		return name, nil
	}
	sender, err := c.resolver.ResolveSender(ctx, senderID)
	if err != nil {
		return "", err
	}
	name := sender.DisplayName()
	c.names[senderID] = name
	return name, nil
}

// Len reports how many senders have been resolved.
func (c *SenderCache) Len() int {
	return len(c.names)
}
