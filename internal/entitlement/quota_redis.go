package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"SMCFlow/pkg/util"
)

// RedisQuotaStore counts quota consumption in Redis so multiple instances
// share one counter per (user, day). Counters expire shortly after the UTC
// day they belong to.
type RedisQuotaStore struct {
	client *redis.Client
	prefix string
}

func NewRedisQuotaStore(client *redis.Client, prefix string) *RedisQuotaStore {
	if prefix == "" {
		prefix = "smcflow"
	}
	return &RedisQuotaStore{client: client, prefix: prefix}
}

func (r *RedisQuotaStore) key(userID, day string) string {
	return fmt.Sprintf("%s:quota:%s:%s", r.prefix, userID, day)
}

// Take increments the day counter and rolls back when the limit was already
// reached. INCR/DECR keep the check atomic across instances.
func (r *RedisQuotaStore) Take(ctx context.Context, userID, day string, limit int) (bool, error) {
	key := r.key(userID, day)

	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("quota incr: %w", err)
	}
	if n == 1 {
		// grace hour past midnight so late resolutions still see the counter
		ttl := time.Until(util.NextMidnight(time.Now())) + time.Hour
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return false, fmt.Errorf("quota expire: %w", err)
		}
	}
	if n > int64(limit) {
		if err := r.client.Decr(ctx, key).Err(); err != nil {
			return false, fmt.Errorf("quota decr: %w", err)
		}
		return false, nil
	}
	return true, nil
}
