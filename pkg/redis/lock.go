package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockHeld = errors.New("redis: lock is held by another owner")

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lock acquires key for ttl. The returned release func deletes the key only while
// this owner still holds it.
func (c *Client) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	token := uuid.NewString()
	ok, err := c.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	c.logger.Debug("lock acquired", zap.String("key", key), zap.Duration("ttl", ttl))
	return func(ctx context.Context) {
		if err := releaseScript.Run(ctx, c.Client, []string{key}, token).Err(); err != nil {
			c.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
