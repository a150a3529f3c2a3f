package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ProcessedEventCache implements ports.IdempotencyCache.
// A key is written only after the event's database row is marked processed,
// so a hit is always safe to acknowledge without touching PostgreSQL.
type ProcessedEventCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewProcessedEventCache creates a new Redis-backed processed-event marker.
func NewProcessedEventCache(client goredis.UniversalClient) *ProcessedEventCache {
	return &ProcessedEventCache{
		client: client,
		prefix: "webhook:processed:",
	}
}

// IsProcessed reports whether eventID has a live processed marker.
func (c *ProcessedEventCache) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis processed exists: %w", err)
	}
	return n == 1, nil
}

// MarkProcessed writes the marker for ttl.
func (c *ProcessedEventCache) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+eventID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis processed set: %w", err)
	}
	return nil
}
