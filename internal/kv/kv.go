// Package kv holds the small shared-state stores behind the rate limiter and
// the webhook idempotency guard: a windowed counter store and a set-once
// marker store. Both ship with an in-memory backend for single-instance
// deployments and a Redis backend for multi-instance ones.
package kv

import (
	"context"
	"time"
)

// Counters is the counter store used by the fixed-window rate limiter.
type Counters interface {
	// Incr increments the counter for key within its current window,
	// starting a fresh window when none exists or the previous one has
	// elapsed. It returns the count after the increment and the time the
	// window resets. The increment happens before any limit check so a
	// racing pair of calls can overcount but never undercount.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Markers is the set-once store used by the webhook idempotency guard.
type Markers interface {
	// PutIfAbsent records key if it was not already present. It returns
	// true when this call created the marker, false when the key was
	// already marked.
	PutIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
