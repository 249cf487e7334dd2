package mention

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/alekspetrov/dobby/internal/logging"
)

// BotIDLookup fetches the bot's own user id from the chat platform.
type BotIDLookup func(ctx context.Context) (string, error)

// BotIdentity memoizes the bot's own user id. Failed lookups are retried on
// the next call; once an id is resolved it is never fetched again.
type BotIdentity struct {
	lookup BotIDLookup
	log    *slog.Logger
	group  singleflight.Group

	mu sync.Mutex
	id string
}

// NewBotIdentity creates a BotIdentity backed by lookup. A nil lookup
// means the id is never known and alias matching is the only signal.
func NewBotIdentity(lookup BotIDLookup) *BotIdentity {
	return &BotIdentity{lookup: lookup, log: logging.WithComponent("mention.bot")}
}

// StaticBotIdentity returns an identity that is already resolved.
func StaticBotIdentity(id string) *BotIdentity {
	return &BotIdentity{id: id, log: logging.WithComponent("mention.bot")}
}

// ID returns the bot's id, resolving it on first use. It returns "" when
// the id cannot be determined yet. Concurrent callers share one lookup,
// and the lock is never held across it.
func (b *BotIdentity) ID(ctx context.Context) string {
	if id := b.Known(); id != "" || b.lookup == nil {
		return id
	}

	v, _, _ := b.group.Do("bot_id", func() (any, error) {
		if id := b.Known(); id != "" {
			return id, nil
		}
		id, err := b.lookup(ctx)
		if err != nil {
			b.log.Warn("bot id lookup failed", slog.Any("error", err))
			return "", nil
		}
		if id != "" {
			b.log.Info("bot id resolved", slog.String("bot_id", id))
			b.mu.Lock()
			b.id = id
			b.mu.Unlock()
		}
		return id, nil
	})
	return v.(string)
}

// Known returns the memoized id without triggering a lookup.
func (b *BotIdentity) Known() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id
}
