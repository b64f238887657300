package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// SeenCache suppresses duplicate notifications for the same slot. Slots
// expire after a ttl so a reappearing slot is announced again later.
type SeenCache interface {
	// MarkIfUnseen marks the slot and reports whether this was its
	// first occurrence within the ttl.
	MarkIfUnseen(ctx context.Context, city, date string) (bool, error)
}

func seenKey(city, date string) string {
	return fmt.Sprintf("easyslot:seen:%s:%s", city, date)
}

// RedisSeen stores seen slots in redis, shared across restarts and
// instances.
type RedisSeen struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSeen(client *redis.Client, ttl time.Duration) *RedisSeen {
	return &RedisSeen{client: client, ttl: ttl}
}

func (r *RedisSeen) MarkIfUnseen(ctx context.Context, city, date string) (bool, error) {
	first, err := r.client.SetNX(ctx, seenKey(city, date), "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark slot in redis: %w", err)
	}
	return first, nil
}

// MemorySeen is the in-process fallback when no redis is configured.
type MemorySeen struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemorySeen(ttl time.Duration, clock clockwork.Clock) *MemorySeen {
	return &MemorySeen{
		ttl:   ttl,
		clock: clock,
		seen:  map[string]time.Time{},
	}
}

func (m *MemorySeen) MarkIfUnseen(_ context.Context, city, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	key := seenKey(city, date)
	if expiry, ok := m.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}
	// drop expired entries while we are here
	for k, expiry := range m.seen {
		if !now.Before(expiry) {
			delete(m.seen, k)
		}
	}
	m.seen[key] = now.Add(m.ttl)
	return true, nil
}
