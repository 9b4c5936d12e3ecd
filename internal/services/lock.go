package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when the lock could not be acquired within
// the wait bound. Callers may retry the whole operation later.
var ErrLockTimeout = errors.New("lock wait timed out")

// Locker is a distributed mutual-exclusion primitive with a bounded
// acquisition wait and a bounded maximum hold time. The returned release
// function must be called on every exit path.
type Locker interface {
	Acquire(ctx context.Context, key string, hold, wait time.Duration) (release func(), err error)
}

const lockPollInterval = 100 * time.Millisecond

// Value is only deleted when the holder token still matches, so an
// expired lock re-acquired by someone else is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on a shared Redis instance, so the lock
// holds across processes.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(cache *RedisCache) *RedisLocker {
	return &RedisLocker{client: cache.Client()}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, hold, wait time.Duration) (func(), error) {
	token := uuid.New().String()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, hold).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				unlockScript.Run(releaseCtx, l.client, []string{key}, token)
			}
			return release, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s: %w", key, ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}
