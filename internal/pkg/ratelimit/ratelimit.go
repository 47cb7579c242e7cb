// internal/pkg/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter struct {
	client *redis.Client
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Check counts a request against a fixed window and reports whether it is allowed.
// The counter key expires with the window, so a Redis outage never locks callers out.
func (l *Limiter) Check(ctx context.Context, identityID int64, endpoint string, maxRequests int64, window time.Duration) (bool, error) {
	key := fmt.Sprintf("ratelimit:api:%d:%s", identityID, endpoint)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment API rate limit: %w", err)
	}

	// Set expiration on first attempt
	if count == 1 {
		l.client.Expire(ctx, key, window)
	}

	return count <= maxRequests, nil
}

// Remaining returns how many requests are left in the current window
func (l *Limiter) Remaining(ctx context.Context, identityID int64, endpoint string, maxRequests int64) (int64, error) {
	key := fmt.Sprintf("ratelimit:api:%d:%s", identityID, endpoint)

	count, err := l.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return maxRequests, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get API rate limit: %w", err)
	}

	remaining := maxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// Reset clears the window counter
func (l *Limiter) Reset(ctx context.Context, identityID int64, endpoint string) error {
	key := fmt.Sprintf("ratelimit:api:%d:%s", identityID, endpoint)
	return l.client.Del(ctx, key).Err()
}
