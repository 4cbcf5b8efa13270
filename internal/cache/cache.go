package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-clubs/internal/logger"
)

const (
	eventListPattern = "event_list:*"
	eventListTTL     = 5 * time.Minute
)

// EventCache is the external cache collaborator for event listings. It is
// invalidated after a successful commit and is never part of the write
// transaction; failures are logged and swallowed.
type EventCache struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewEventCache(client *redis.Client, log *logger.Logger) *EventCache {
	return &EventCache{Client: client, Logger: log}
}

// ListKey builds the cache key for one event-list query shape.
func ListKey(clubID string, upcoming bool) string {
	return fmt.Sprintf("event_list:club=%s|upcoming=%t", clubID, upcoming)
}

// GetEventList returns a cached listing payload, or false on miss or error.
func (c *EventCache) GetEventList(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.Client == nil {
		return nil, false
	}
	payload, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.Logger.Warn("CACHE", fmt.Sprintf("Failed to read event list %s: %v", key, err))
		}
		return nil, false
	}
	return payload, true
}

// SetEventList stores a listing payload with a short TTL.
func (c *EventCache) SetEventList(ctx context.Context, key string, payload []byte) {
	if c == nil || c.Client == nil {
		return
	}
	if err := c.Client.Set(ctx, key, payload, eventListTTL).Err(); err != nil {
		c.Logger.Warn("CACHE", fmt.Sprintf("Failed to cache event list %s: %v", key, err))
	}
}

// InvalidateEventLists drops every cached event listing.
func (c *EventCache) InvalidateEventLists(ctx context.Context) {
	if c == nil || c.Client == nil {
		return
	}

	var cursor uint64
	for {
		keys, next, err := c.Client.Scan(ctx, cursor, eventListPattern, 100).Result()
		if err != nil {
			c.Logger.Warn("CACHE", fmt.Sprintf("Failed to scan event list keys: %v", err))
			return
		}
		if len(keys) > 0 {
			if err := c.Client.Del(ctx, keys...).Err(); err != nil {
				c.Logger.Warn("CACHE", fmt.Sprintf("Failed to delete %d event list keys: %v", len(keys), err))
				return
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
}
