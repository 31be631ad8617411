package billing

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisEventCache short-circuits whole-event reprocessing within a time
// window keyed on the provider's exact event id. It is an optimization in
// front of the durable processed_payments record, never a substitute: a cache
// miss (or a dead redis) just means the durable guard does the work.
type RedisEventCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisEventCache(client *redis.Client, ttl time.Duration) *RedisEventCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisEventCache{client: client, ttl: ttl}
}

// SeenRecently marks the event id and reports whether it was already marked
// within the window. SET NX is atomic, so concurrent deliveries of the same
// event agree on a single winner.
func (c *RedisEventCache) SeenRecently(ctx context.Context, eventID string) (bool, error) {
	set, err := c.client.SetNX(ctx, "billing:event:"+eventID, 1, c.ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}
