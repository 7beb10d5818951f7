package redis

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SetNX sets a key only if it does not exist
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		c.logger.Error("redis setnx failed", zap.String("key", key), zap.Error(err))
	}
	return ok, err
}

// Eval executes a Lua script
func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	result, err := c.rdb.Eval(ctx, script, keys, args...).Result()
	if err != nil {
		c.logger.Error("redis eval failed", zap.Strings("keys", keys), zap.Error(err))
	}
	return result, err
}
