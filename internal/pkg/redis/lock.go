package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrLockHeld is returned when the lock is already held by another owner.
var ErrLockHeld = errors.New("redis: lock already held")

// unlockScript deletes the lock only when the stored token matches,
// so an expired-and-reacquired lock is never released by the old holder.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Lock acquires a distributed lock and returns the owner token.
func (c *Client) Lock(ctx context.Context, key string, expiration time.Duration) (string, error) {
	token := uuid.New().String()

	ok, err := c.SetNX(ctx, key, token, expiration)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}

	c.logger.Debug("redis lock acquired",
		zap.String("key", key),
		zap.Duration("expiration", expiration),
	)
	return token, nil
}

// Unlock releases a lock previously acquired with Lock.
func (c *Client) Unlock(ctx context.Context, key, token string) error {
	result, err := c.Eval(ctx, unlockScript, []string{key}, token)
	if err != nil {
		return err
	}

	if n, _ := result.(int64); n == 0 {
		return errors.New("redis: unlock failed, token mismatch or lock expired")
	}

	c.logger.Debug("redis lock released", zap.String("key", key))
	return nil
}

// TryWithLock runs fn while holding the lock. It returns (false, nil) without
// running fn when the lock is held elsewhere, which lets overlapping scheduled
// jobs collapse into a single run.
func (c *Client) TryWithLock(ctx context.Context, key string, expiration time.Duration, fn func() error) (bool, error) {
	token, err := c.Lock(ctx, key, expiration)
	if errors.Is(err, ErrLockHeld) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	defer func() {
		if uerr := c.Unlock(ctx, key, token); uerr != nil {
			c.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(uerr))
		}
	}()

	return true, fn()
}
