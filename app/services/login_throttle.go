package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLoginThrottled      = errors.New("too many login attempts")
	ErrThrottleUnavailable = errors.New("login throttle unavailable")
)

// LoginThrottle counts failed logins per username and client IP within a lockout window.
// An empty ip counts against the username alone.
type LoginThrottle interface {
	// Check returns ErrLoginThrottled once the username used up its attempts from ip
	Check(ctx context.Context, username, ip string) error
	RecordFailure(ctx context.Context, username, ip string) error
	Reset(ctx context.Context, username, ip string) error
}

// RedisLoginThrottle keeps one counter key per username and IP that expires after the lockout window
type RedisLoginThrottle struct {
	client      *redis.Client
	prefix      string
	maxAttempts int
	lockout     time.Duration
}

// NewLoginThrottle returns a redis backed throttle, or a no-op one when client is nil or maxAttempts is not positive
func NewLoginThrottle(client *redis.Client, prefix string, maxAttempts int, lockout time.Duration) LoginThrottle {
	if client == nil || maxAttempts <= 0 {
		return noopLoginThrottle{}
	}
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	return &RedisLoginThrottle{
		client:      client,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		lockout:     lockout,
	}
}

func (t *RedisLoginThrottle) key(username, ip string) string {
	key := t.prefix + "login_failures:" + strings.ToLower(username)
	if ip != "" {
		key += ":" + ip
	}
	return key
}

func (t *RedisLoginThrottle) Check(ctx context.Context, username, ip string) error {
	count, err := t.client.Get(ctx, t.key(username, ip)).Int()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrThrottleUnavailable, err)
	}
	if count >= t.maxAttempts {
		return ErrLoginThrottled
	}
	return nil
}

func (t *RedisLoginThrottle) RecordFailure(ctx context.Context, username, ip string) error {
	key := t.key(username, ip)
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrThrottleUnavailable, err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.lockout).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrThrottleUnavailable, err)
		}
	}
	return nil
}

func (t *RedisLoginThrottle) Reset(ctx context.Context, username, ip string) error {
	if err := t.client.Del(ctx, t.key(username, ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrThrottleUnavailable, err)
	}
	return nil
}

type noopLoginThrottle struct{}

func (noopLoginThrottle) Check(context.Context, string, string) error         { return nil }
func (noopLoginThrottle) RecordFailure(context.Context, string, string) error { return nil }
func (noopLoginThrottle) Reset(context.Context, string, string) error         { return nil }
