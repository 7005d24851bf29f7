// Package ratelimit implements the fixed-window request limiter that gates
// every public entry point. Windows are anchored at the first request of each
// window rather than at clock boundaries, so bursts are possible across a
// window edge; that tradeoff is deliberate and documented in the action table.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clearcheck/dossier-api/internal/kv"
)

// Action names the operations with independent rate budgets.
type Action string

const (
	ActionDefault  Action = "default"
	ActionAuth     Action = "auth"
	ActionAdmin    Action = "admin"
	ActionValidate Action = "validate"
	ActionWebhook  Action = "webhook"
)

// Limit is the budget for one action.
type Limit struct {
	MaxRequests int64         `yaml:"max_requests" mapstructure:"max_requests"`
	Window      time.Duration `yaml:"window" mapstructure:"window"`
}

// DefaultLimits returns the stock action table.
func DefaultLimits() map[Action]Limit {
	return map[Action]Limit{
		ActionDefault:  {MaxRequests: 60, Window: time.Minute},
		ActionAuth:     {MaxRequests: 5, Window: time.Minute},
		ActionAdmin:    {MaxRequests: 100, Window: time.Minute},
		ActionValidate: {MaxRequests: 10, Window: time.Minute},
		ActionWebhook:  {MaxRequests: 100, Window: time.Minute},
	}
}

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Limiter gates requests per (action, identifier) pair.
type Limiter struct {
	counters kv.Counters
	limits   map[Action]Limit
}

// New creates a limiter over the given counter store. Nil limits fall back to
// DefaultLimits.
func New(counters kv.Counters, limits map[Action]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Limiter{counters: counters, limits: limits}
}

// Check records one request for identifier under action and decides whether
// it is allowed. Internal store errors never surface to the caller: the
// request is denied and the error logged, denial being the safe default.
func (l *Limiter) Check(ctx context.Context, identifier string, action Action) Decision {
	limit, ok := l.limits[action]
	if !ok {
		limit = l.limits[ActionDefault]
	}
	if limit.MaxRequests <= 0 {
		// Unconfigured action: deny everything rather than run unmetered.
		return Decision{Allowed: false, ResetAt: time.Now().Add(time.Minute)}
	}

	key := fmt.Sprintf("rl:%s:%s", action, identifier)
	count, resetAt, err := l.counters.Incr(ctx, key, limit.Window)
	if err != nil {
		zap.L().Error("ratelimit: counter store failure, denying",
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return Decision{Allowed: false, ResetAt: time.Now().Add(limit.Window)}
	}

	remaining := limit.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= limit.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// RetryAfter returns the wait until the denied caller may try again.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
