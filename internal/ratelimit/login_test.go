package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolms/schoolms-server/internal/model"
	"github.com/schoolms/schoolms-server/internal/testutil"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLoginLimiter_BlocksAfterMaxFailures(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewLoginLimiter(client, 3, 10, time.Minute, testutil.MakeNoopLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Check(ctx, "a@x.com", "10.0.0.1"))
		l.RecordFailure(ctx, "a@x.com", "10.0.0.1")
	}

	require.ErrorIs(t, l.Check(ctx, "a@x.com", "10.0.0.1"), model.ErrTooManyAttempts)
	require.ErrorIs(t, l.Check(ctx, "A@X.com ", "10.0.0.1"), model.ErrTooManyAttempts, "email is normalized")
	require.NoError(t, l.Check(ctx, "a@x.com", "10.0.0.2"))
	require.NoError(t, l.Check(ctx, "b@x.com", "10.0.0.1"))
}

func TestLoginLimiter_WindowExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewLoginLimiter(client, 1, 10, time.Minute, testutil.MakeNoopLogger())
	ctx := context.Background()

	l.RecordFailure(ctx, "a@x.com", "ip")
	require.ErrorIs(t, l.Check(ctx, "a@x.com", "ip"), model.ErrTooManyAttempts)

	ttl := mr.TTL(keyPrefix + "a@x.com:ip")
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(time.Minute + time.Second)
	require.NoError(t, l.Check(ctx, "a@x.com", "ip"))
}

func TestLoginLimiter_WindowIsFixed(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewLoginLimiter(client, 5, 10, time.Minute, testutil.MakeNoopLogger())
	ctx := context.Background()

	l.RecordFailure(ctx, "a@x.com", "ip")
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"a@x.com:ip"))
	assert.Equal(t, time.Minute, mr.TTL(emailKeyPrefix+"a@x.com"))

	mr.FastForward(30 * time.Second)
	l.RecordFailure(ctx, "a@x.com", "ip")

	assert.Equal(t, 30*time.Second, mr.TTL(keyPrefix+"a@x.com:ip"), "later failures do not extend the window")
	count, err := mr.Get(keyPrefix + "a@x.com:ip")
	require.NoError(t, err)
	assert.Equal(t, "2", count)
}

func TestLoginLimiter_PerEmailLimitSpansAddresses(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewLoginLimiter(client, 5, 3, time.Minute, testutil.MakeNoopLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ip := fmt.Sprintf("203.0.113.%d", i)
		require.NoError(t, l.Check(ctx, "a@x.com", ip))
		l.RecordFailure(ctx, "a@x.com", ip)
	}

	require.ErrorIs(t, l.Check(ctx, "a@x.com", "198.51.100.7"), model.ErrTooManyAttempts)
	require.NoError(t, l.Check(ctx, "b@x.com", "198.51.100.7"))

	l.Reset(ctx, "a@x.com", "198.51.100.7")
	require.NoError(t, l.Check(ctx, "a@x.com", "198.51.100.7"))
}

func TestLoginLimiter_Reset(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewLoginLimiter(client, 1, 10, time.Minute, testutil.MakeNoopLogger())
	ctx := context.Background()

	l.RecordFailure(ctx, "a@x.com", "ip")
	require.ErrorIs(t, l.Check(ctx, "a@x.com", "ip"), model.ErrTooManyAttempts)

	l.Reset(ctx, "a@x.com", "ip")
	require.NoError(t, l.Check(ctx, "a@x.com", "ip"))
}

func TestLoginLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	l := NewLoginLimiter(client, 1, 10, time.Minute, testutil.MakeNoopLogger())
	ctx := context.Background()

	require.NoError(t, l.Check(ctx, "a@x.com", "ip"))
	l.RecordFailure(ctx, "a@x.com", "ip")
	l.Reset(ctx, "a@x.com", "ip")
}

func TestNoop(t *testing.T) {
	var n Noop
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		n.RecordFailure(ctx, "a@x.com", "ip")
	}
	require.NoError(t, n.Check(ctx, "a@x.com", "ip"))
	n.Reset(ctx, "a@x.com", "ip")
}
