package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// GetBytes returns the cached value; ok is false on a miss.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	c.logger.Debug("redis cache hit", zap.String("key", key), zap.Int("size", len(val)))
	return val, true, nil
}

func (c *Client) SetBytes(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := c.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
