package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	unreadDto "anoa.com/studyhub/internal/modules/unread/dto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CountCache stores computed counts per user.
type CountCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*unreadDto.UnreadCounts, bool, error)
	Set(ctx context.Context, userID uuid.UUID, counts *unreadDto.UnreadCounts) error
	Delete(ctx context.Context, userIDs ...uuid.UUID) error
}

type redisCountCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCountCache(client *redis.Client, ttl time.Duration) CountCache {
	return &redisCountCache{client: client, ttl: ttl}
}

func cacheKey(userID uuid.UUID) string {
	return "unread_counts:" + userID.String()
}

func (c *redisCountCache) Get(ctx context.Context, userID uuid.UUID) (*unreadDto.UnreadCounts, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var counts unreadDto.UnreadCounts
	if err := json.Unmarshal(raw, &counts); err != nil {
		return nil, false, err
	}
	return &counts, true, nil
}

func (c *redisCountCache) Set(ctx context.Context, userID uuid.UUID, counts *unreadDto.UnreadCounts) error {
	raw, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(userID), raw, c.ttl).Err()
}

func (c *redisCountCache) Delete(ctx context.Context, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cacheKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}

type nopCountCache struct{}

func NewNopCountCache() CountCache { return nopCountCache{} }

func (nopCountCache) Get(context.Context, uuid.UUID) (*unreadDto.UnreadCounts, bool, error) {
	return nil, false, nil
}
func (nopCountCache) Set(context.Context, uuid.UUID, *unreadDto.UnreadCounts) error { return nil }
func (nopCountCache) Delete(context.Context, ...uuid.UUID) error                    { return nil }
