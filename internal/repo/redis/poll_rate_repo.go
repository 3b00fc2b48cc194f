package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PollRateRepo counts hits in a fixed window per key. Used to throttle status
// polling so a result page stuck in a refresh loop cannot hammer the gateway.
type PollRateRepo struct {
	client *goredis.Client
}

func NewPollRateRepo(client *goredis.Client) *PollRateRepo {
	return &PollRateRepo{client: client}
}

// Hit increments the window counter and returns the new count plus the time
// left in the window. ExpireNX pins the ttl to the first hit even when
// concurrent callers race on the increment.
func (r *PollRateRepo) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if key == "" || window <= 0 {
		return 0, 0, fmt.Errorf("invalid poll rate payload")
	}

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("increment poll counter: %w", err)
	}
	if err := r.client.ExpireNX(ctx, key, window).Err(); err != nil {
		return 0, 0, fmt.Errorf("set poll counter ttl: %w", err)
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read poll counter ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}

	return count, ttl, nil
}
