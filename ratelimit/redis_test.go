package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis answers script calls with canned results. The embedded
// interface is nil; methods the limiter does not use panic.
type fakeRedis struct {
	redis.Scripter

	evalShaErr error
	result     int64
	resultErr  error

	evalShaCalls int
	evalCalls    int
	lastKeys     []string
	lastArgs     []interface{}
	deleted      []string
}

func (f *fakeRedis) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	f.evalShaCalls++
	f.lastKeys, f.lastArgs = keys, args
	if f.evalShaErr != nil {
		return redis.NewCmdResult(nil, f.evalShaErr)
	}
	return redis.NewCmdResult(f.result, f.resultErr)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.evalCalls++
	f.lastKeys, f.lastArgs = keys, args
	return redis.NewCmdResult(f.result, f.resultErr)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.deleted = append(f.deleted, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

// replyError mimics an error reply from the server.
type replyError string

func (e replyError) Error() string { return string(e) }
func (replyError) RedisError() {}

func newTestRedisLimiter(t *testing.T, client RedisClient) *RedisLimiter {
	t.Helper()
	l, err := NewRedisLimiter(client, "ratelimit:login", Policy{Capacity: 1, RefillTokens: 1, RefillPeriod: time.Minute}, 24*time.Hour)
	require.NoError(t, err)
	l.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return l
}

func TestRedisLimiter_TryConsume(t *testing.T) {
	client := &fakeRedis{result: 1}
	l := newTestRedisLimiter(t, client)

	ok, err := l.TryConsume(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"ratelimit:login:alice"}, client.lastKeys)
	require.Len(t, client.lastArgs, 5)
	assert.Equal(t, 1, client.lastArgs[0])
	assert.Equal(t, 1, client.lastArgs[1])
	assert.Equal(t, time.Minute.Milliseconds(), client.lastArgs[2])
	assert.Equal(t, int64(1_700_000_000_000), client.lastArgs[3])
	assert.Equal(t, (24 * time.Hour).Milliseconds(), client.lastArgs[4])

	client.result = 0
	ok, err = l.TryConsume(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLimiter_FallsBackToEvalWhenScriptNotCached(t *testing.T) {
	client := &fakeRedis{result: 1, evalShaErr: replyError("NOSCRIPT No matching script. Please use EVAL.")}
	l := newTestRedisLimiter(t, client)

	ok, err := l.TryConsume(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, client.evalShaCalls)
	assert.Equal(t, 1, client.evalCalls)
}

func TestRedisLimiter_SurfacesErrors(t *testing.T) {
	client := &fakeRedis{resultErr: errors.New("connection refused")}
	l := newTestRedisLimiter(t, client)

	ok, err := l.TryConsume(context.Background(), "alice")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection refused")
}

func TestRedisLimiter_ResetAndEvict(t *testing.T) {
	client := &fakeRedis{}
	l := newTestRedisLimiter(t, client)

	require.NoError(t, l.Reset(context.Background(), "alice"))
	assert.Equal(t, []string{"ratelimit:login:alice"}, client.deleted)

	n, err := l.EvictIdle(context.Background(), time.Hour)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewRedisLimiter_RejectsBadSettings(t *testing.T) {
	_, err := NewRedisLimiter(&fakeRedis{}, "p", Policy{}, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = NewRedisLimiter(&fakeRedis{}, "p", Policy{Capacity: 1, RefillTokens: 1, RefillPeriod: time.Minute}, 0)
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = NewRedisLimiter(&fakeRedis{}, "p", Policy{Capacity: 1, RefillTokens: 1, RefillPeriod: time.Microsecond}, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}
