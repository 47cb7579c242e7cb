// internal/pkg/lock/redis_lock.go
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld means another worker is processing the same key right now.
var ErrLockHeld = errors.New("lock already held")

// RedisLock provides short-lived exclusive locks, used to serialize webhook
// processing per settlement reference. The database unique constraint remains
// the hard backstop; the lock just avoids doing the work twice.
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

// Lua compare-and-delete so a worker can only release its own lock, not one
// that expired and was re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire takes the lock for key, or returns ErrLockHeld. The returned release
// function is safe to call once; the TTL bounds the hold if the worker dies.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	fullKey := fmt.Sprintf("lock:%s", key)

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func() {
		// Release on a fresh context; the caller's may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err()
	}

	return release, nil
}
