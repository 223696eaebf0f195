package category

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// noMatchSentinel marks labels the matcher already declared unresolvable, so
// a run never pays for the same semantic-match call twice.
const noMatchSentinel = int64(-1)

// MatchCache memoizes semantic category matches. The in-process map is
// authoritative for the run; Redis, when configured, carries results across
// runs.
type MatchCache struct {
	mu      sync.Mutex
	entries map[string]int64

	redis *redis.Client
	key   string
	ttl   time.Duration
}

func NewMatchCache(redisClient *redis.Client, key string, ttl time.Duration) *MatchCache {
	return &MatchCache{
		entries: make(map[string]int64),
		redis:   redisClient,
		key:     key,
		ttl:     ttl,
	}
}

// Get returns (categoryID, matched, cached). matched is false for a cached
// explicit no-match.
func (c *MatchCache) Get(ctx context.Context, label string) (int64, bool, bool) {
	c.mu.Lock()
	id, ok := c.entries[label]
	c.mu.Unlock()
	if ok {
		return id, id != noMatchSentinel, true
	}

	if c.redis == nil {
		return 0, false, false
	}

	raw, err := c.redis.HGet(ctx, c.key, label).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("Match cache read failed", "label", label, "error", err)
		}
		return 0, false, false
	}
	id, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		return 0, false, false
	}

	c.mu.Lock()
	c.entries[label] = id
	c.mu.Unlock()
	return id, id != noMatchSentinel, true
}

func (c *MatchCache) Put(ctx context.Context, label string, id int64, matched bool) {
	if !matched {
		id = noMatchSentinel
	}

	c.mu.Lock()
	c.entries[label] = id
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	if err := c.redis.HSet(ctx, c.key, label, strconv.FormatInt(id, 10)).Err(); err != nil {
		slog.Debug("Match cache write failed", "label", label, "error", err)
		return
	}
	_ = c.redis.Expire(ctx, c.key, c.ttl).Err()
}
