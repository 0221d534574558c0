// Package ratelimit implements per-key token buckets used to throttle login
// and password reset attempts.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Limiter admits or denies attempts per key. Implementations never block.
type Limiter interface {
	// TryConsume takes one permit from the bucket of key, creating the
	// bucket full when it does not exist yet.
	TryConsume(ctx context.Context, key string) (bool, error)
	// Reset drops the bucket of key so the next attempt starts full.
	Reset(ctx context.Context, key string) error
	// EvictIdle drops buckets not touched for longer than olderThan and
	// returns how many were removed.
	EvictIdle(ctx context.Context, olderThan time.Duration) (int, error)
}

// Policy is a bucket of Capacity permits. Every full RefillPeriod adds
// RefillTokens permits at once, never above Capacity; a partial period adds
// nothing.
type Policy struct {
	Capacity     int
	RefillTokens int
	RefillPeriod time.Duration
}

var ErrInvalidPolicy = errors.New("invalid rate limit policy")

func (p Policy) Validate() error {
	if p.Capacity < 1 || p.RefillTokens < 1 || p.RefillPeriod <= 0 {
		return fmt.Errorf("%w: capacity=%d refill=%d/%s", ErrInvalidPolicy, p.Capacity, p.RefillTokens, p.RefillPeriod)
	}
	return nil
}

// refill returns the permits of a bucket holding tokens after the whole
// periods elapsed between refilledAt and now, and the start of the current
// period.
func (p Policy) refill(tokens int, refilledAt, now time.Time) (int, time.Time) {
	periods := now.Sub(refilledAt) / p.RefillPeriod
	if periods <= 0 {
		return tokens, refilledAt
	}
	refilledAt = refilledAt.Add(periods * p.RefillPeriod)
	if int64(periods) >= int64(p.Capacity) {
		return p.Capacity, refilledAt
	}
	return min(p.Capacity, tokens+int(periods)*p.RefillTokens), refilledAt
}
