// Package ratelimit throttles failed login attempts in Redis.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schoolms/schoolms-server/internal/logger"
	"github.com/schoolms/schoolms-server/internal/model"
)

const (
	keyPrefix      = "login_fail:"
	emailKeyPrefix = "login_fail_email:"
)

var (
	_ model.LoginThrottle = (*LoginLimiter)(nil)
	_ model.LoginThrottle = Noop{}
)

// LoginLimiter is a fixed-window failure counter kept per email and client
// address, plus a looser one per email alone so rotating addresses cannot
// reset the limit. Redis errors never block a login: the limiter fails open
// and logs.
type LoginLimiter struct {
	redis       redis.Cmdable
	maxAttempts int64
	maxPerEmail int64
	window      time.Duration
	logger      *logger.Logger
}

// NewLoginLimiter creates a limiter allowing maxAttempts failures per email
// and address, and maxPerEmail failures per email, in each window.
func NewLoginLimiter(client redis.Cmdable, maxAttempts, maxPerEmail int, window time.Duration, logger *logger.Logger) *LoginLimiter {
	return &LoginLimiter{
		redis:       client,
		maxAttempts: int64(maxAttempts),
		maxPerEmail: int64(maxPerEmail),
		window:      window,
		logger:      logger,
	}
}

func (l *LoginLimiter) Check(ctx context.Context, email, ip string) error {
	values, err := l.redis.MGet(ctx, key(email, ip), emailKey(email)).Result()
	if err != nil {
		l.logger.Warn("Login limiter: check failed, allowing attempt", "error", err)
		return nil
	}

	limits := []int64{l.maxAttempts, l.maxPerEmail}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if count >= limits[i] {
			return model.ErrTooManyAttempts
		}
	}
	return nil
}

// RecordFailure counts a failed attempt. Each counter is created with its
// window in the same transaction as the increment, so a counter never
// outlives its window.
func (l *LoginLimiter) RecordFailure(ctx context.Context, email, ip string) {
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range []string{key(email, ip), emailKey(email)} {
			pipe.SetNX(ctx, k, 0, l.window)
			pipe.Incr(ctx, k)
		}
		return nil
	})
	if err != nil {
		l.logger.Warn("Login limiter: failed to record failure", "error", err)
	}
}

func (l *LoginLimiter) Reset(ctx context.Context, email, ip string) {
	if err := l.redis.Del(ctx, key(email, ip), emailKey(email)).Err(); err != nil {
		l.logger.Warn("Login limiter: failed to reset", "error", err)
	}
}

func key(email, ip string) string {
	return keyPrefix + model.NormalizeEmail(email) + ":" + ip
}

func emailKey(email string) string {
	return emailKeyPrefix + model.NormalizeEmail(email)
}

// Noop never throttles. It is used when Redis is not configured.
type Noop struct{}

func (Noop) Check(context.Context, string, string) error { return nil }

func (Noop) RecordFailure(context.Context, string, string) {}

func (Noop) Reset(context.Context, string, string) {}
