package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// PostTTL bounds staleness of cached single-post reads.
	PostTTL = 2 * time.Minute
	// NewsTTL bounds staleness of cached news listings.
	NewsTTL = 5 * time.Minute
)

// PostKey returns the cache key for a single post.
func PostKey(id uint) string {
	return fmt.Sprintf("post:%d", id)
}

// NewsListKey returns the cache key for a news listing page.
func NewsListKey(limit, offset int) string {
	return fmt.Sprintf("news:list:%d:%d", limit, offset)
}

// Aside implements the cache-aside pattern: on a hit, dest is populated from
// the cached JSON; on a miss, fill runs and its result is stored best-effort.
// With no Redis client, fill always runs.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fill func() error) error {
	if client == nil {
		return fill()
	}

	raw, err := client.Get(ctx, key).Result()
	if err == nil {
		if uerr := json.Unmarshal([]byte(raw), dest); uerr == nil {
			return nil
		}
		// Corrupt entry; drop it and fall through to the source of truth.
		client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		return fill()
	}

	if err := fill(); err != nil {
		return err
	}

	if encoded, merr := json.Marshal(dest); merr == nil {
		client.Set(ctx, key, encoded, ttl)
	}
	return nil
}

// Invalidate removes the given keys; a nil client is a no-op.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

// InvalidateNewsLists drops all cached news listing pages.
func InvalidateNewsLists(ctx context.Context) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, "news:list:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}
