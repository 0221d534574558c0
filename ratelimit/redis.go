package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills whole periods and consumes one permit atomically.
// KEYS[1] bucket hash; ARGV capacity, refill tokens, period in ms, now in ms,
// idle ttl in ms. The hash keeps the permits and the start of the current
// period.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local period = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

local periods = math.floor((now - ts) / period)
if periods > 0 then
  tokens = math.min(capacity, tokens + periods * refill)
  ts = ts + periods * period
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', string.format('%d', tokens), 'ts', string.format('%d', ts))
redis.call('PEXPIRE', KEYS[1], ttl)
return allowed
`)

// RedisClient is the part of *redis.Client the limiter needs.
type RedisClient interface {
	redis.Scripter
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Limiter = (*RedisLimiter)(nil)

// RedisLimiter shares buckets between instances through Redis. Every key
// carries an expiry of the idle threshold, so Redis evicts idle buckets.
type RedisLimiter struct {
	client    RedisClient
	prefix    string
	policy    Policy
	idleAfter time.Duration
	now       func() time.Time
}

func NewRedisLimiter(client RedisClient, prefix string, policy Policy, idleAfter time.Duration) (*RedisLimiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.RefillPeriod < time.Millisecond {
		return nil, fmt.Errorf("%w: refill period below 1ms", ErrInvalidPolicy)
	}
	if idleAfter <= 0 {
		return nil, fmt.Errorf("%w: idle threshold must be positive", ErrInvalidPolicy)
	}
	return &RedisLimiter{
		client:    client,
		prefix:    prefix,
		policy:    policy,
		idleAfter: idleAfter,
		now:       time.Now,
	}, nil
}

func (l *RedisLimiter) key(key string) string {
	return l.prefix + ":" + key
}

func (l *RedisLimiter) TryConsume(ctx context.Context, key string) (bool, error) {
	allowed, err := tokenBucketScript.Run(ctx, l.client, []string{l.key(key)},
		l.policy.Capacity,
		l.policy.RefillTokens,
		l.policy.RefillPeriod.Milliseconds(),
		l.now().UnixMilli(),
		l.idleAfter.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return allowed == 1, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}

// EvictIdle is a no-op; key expiry already removes idle buckets.
func (l *RedisLimiter) EvictIdle(context.Context, time.Duration) (int, error) {
	return 0, nil
}
