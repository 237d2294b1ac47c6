package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClaimer keeps order claims in Redis with SET NX. A zero TTL keeps
// claims forever.
type RedisClaimer struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisClaimer(redisClient *redis.Client, ttl time.Duration) *RedisClaimer {
	return &RedisClaimer{redis: redisClient, ttl: ttl}
}

func orderClaimKey(orderID, eventID string) string {
	return fmt.Sprintf("order:claim:%s:%s", eventID, orderID)
}

func (c *RedisClaimer) ClaimOrder(ctx context.Context, orderID, eventID string) (bool, error) {
	ok, err := c.redis.SetNX(ctx, orderClaimKey(orderID, eventID), "1", c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming order: %w", err)
	}
	return ok, nil
}

func (c *RedisClaimer) ReleaseOrder(ctx context.Context, orderID, eventID string) error {
	if err := c.redis.Del(ctx, orderClaimKey(orderID, eventID)).Err(); err != nil {
		return fmt.Errorf("releasing order claim: %w", err)
	}
	return nil
}
