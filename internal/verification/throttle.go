package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle is a fixed window counter in Redis. A nil Throttle allows everything.
type Throttle struct {
	client redis.UniversalClient
	prefix string
	limit  int64
	window time.Duration
}

// NewThrottle returns nil when client is nil or limit is not positive.
func NewThrottle(client redis.UniversalClient, prefix string, limit int, window time.Duration) *Throttle {
	if client == nil || limit <= 0 {
		return nil
	}
	return &Throttle{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Allow counts one hit for key and reports whether it is within the limit.
func (t *Throttle) Allow(ctx context.Context, key string) (bool, error) {
	if t == nil {
		return true, nil
	}

	k := t.prefix + key
	count, err := t.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("throttle incr: %w", err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, k, t.window).Err(); err != nil {
			return false, fmt.Errorf("throttle expire: %w", err)
		}
	}
	return count <= t.limit, nil
}

// Reset clears the counter for key.
func (t *Throttle) Reset(ctx context.Context, key string) error {
	if t == nil {
		return nil
	}
	return t.client.Del(ctx, t.prefix+key).Err()
}
