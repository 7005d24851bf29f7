package kv

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisCounters is a Counters backend over Redis, for deployments where the
// limiter state must be shared across instances. Window rollover rides on key
// expiry, so no explicit garbage collection is needed.
type RedisCounters struct {
	client redis.UniversalClient
}

// NewRedisCounters wraps a Redis client as a counter store.
func NewRedisCounters(client redis.UniversalClient) *RedisCounters {
	return &RedisCounters{client: client}
}

// Incr implements Counters. INCR-then-EXPIRE keeps the increment atomic: a
// racing pair of calls may both count, never neither.
func (r *RedisCounters) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, eris.Wrap(err, "kv: redis incr")
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, eris.Wrap(err, "kv: redis pexpire")
		}
		return count, time.Now().Add(window), nil
	}

	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, eris.Wrap(err, "kv: redis pttl")
	}
	if ttl < 0 {
		// The creator crashed between INCR and PEXPIRE; repair the window.
		if err := r.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, eris.Wrap(err, "kv: redis pexpire repair")
		}
		ttl = window
	}
	return count, time.Now().Add(ttl), nil
}

// RedisMarkers is a Markers backend over Redis using SET NX with a TTL, which
// gives the exactly-once semantics the webhook guard needs across instances.
type RedisMarkers struct {
	client redis.UniversalClient
}

// NewRedisMarkers wraps a Redis client as a marker store.
func NewRedisMarkers(client redis.UniversalClient) *RedisMarkers {
	return &RedisMarkers{client: client}
}

// PutIfAbsent implements Markers.
func (r *RedisMarkers) PutIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	created, err := r.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, eris.Wrap(err, "kv: redis setnx")
	}
	return created, nil
}
