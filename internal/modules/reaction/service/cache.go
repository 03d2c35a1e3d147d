package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"anoa.com/studyhub/internal/entity"
	"github.com/redis/go-redis/v9"
)

const countsTTL = 7 * 24 * time.Hour

// CountsCache keeps per-emoji reaction counts in a redis hash per message.
// A nil client disables it.
type CountsCache struct {
	client *redis.Client
}

func NewCountsCache(client *redis.Client) *CountsCache {
	return &CountsCache{client: client}
}

func countsKey(target entity.MessageRef) string {
	return fmt.Sprintf("reaction_counts:%s:%s", target.Kind(), target.MessageID())
}

// Get reports ok=false on a miss.
func (c *CountsCache) Get(ctx context.Context, target entity.MessageRef) (map[string]int64, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	val, err := c.client.HGetAll(ctx, countsKey(target)).Result()
	if err != nil || len(val) == 0 {
		return nil, false, err
	}

	counts := make(map[string]int64, len(val))
	for emoji, v := range val {
		n, _ := strconv.ParseInt(v, 10, 64)
		if n > 0 {
			counts[emoji] = n
		}
	}
	return counts, true, nil
}

func (c *CountsCache) Set(ctx context.Context, target entity.MessageRef, counts map[string]int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	key := countsKey(target)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	for emoji, n := range counts {
		pipe.HSet(ctx, key, emoji, n)
	}
	pipe.Expire(ctx, key, countsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Adjust applies a toggle to a cached hash. Missing hashes stay missing so
// the next read rebuilds them from the database.
func (c *CountsCache) Adjust(ctx context.Context, target entity.MessageRef, emoji string, delta int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	key := countsKey(target)
	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return err
	}
	return c.client.HIncrBy(ctx, key, emoji, delta).Err()
}
