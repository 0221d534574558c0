package ratelimit

import (
	"context"
	"sync"
	"time"
)

var _ Limiter = (*Registry)(nil)

type bucket struct {
	tokens     int
	refilledAt time.Time
	lastAccess time.Time
}

// Registry keeps one in-process bucket per key. A single mutex guards the
// map; lookup, creation, touch and consume happen in one critical section.
type Registry struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type Option func(*Registry)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(policy Policy, opts ...Option) (*Registry, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		policy:  policy,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Registry) TryConsume(_ context.Context, key string) (bool, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{tokens: r.policy.Capacity, refilledAt: now}
		r.buckets[key] = b
	}
	b.lastAccess = now
	b.tokens, b.refilledAt = r.policy.refill(b.tokens, b.refilledAt, now)
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

func (r *Registry) Reset(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.buckets, key)
	return nil
}

func (r *Registry) EvictIdle(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := r.now().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for key, b := range r.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(r.buckets, key)
			evicted++
		}
	}
	return evicted, nil
}

// Len returns the number of live buckets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
