// Package throttle counts failed sign-in and code attempts in fixed Redis
// windows.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const keyPrefix = "amsterdam:attempts:"

type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter keeps one counter per key. The window starts at the first
// failure and is not extended by later ones.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &Limiter{
		redis:  client,
		config: cfg,
	}
}

// Check returns ErrRateLimited once any key has used up its budget.
func (l *Limiter) Check(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		count, err := l.redis.Get(ctx, keyPrefix+key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(l.config.MaxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// Fail records one failed attempt against every key.
func (l *Limiter) Fail(ctx context.Context, keys ...string) error {
	limited := false
	for _, key := range keys {
		count, err := l.incrementWithTTL(ctx, keyPrefix+key)
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = keyPrefix + key
	}
	if err := l.redis.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// count returns the current counter for key, zero when absent.
func (l *Limiter) count(ctx context.Context, key string) (int, error) {
	count, err := l.redis.Get(ctx, keyPrefix+key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// Noop never limits. It stands in when Redis is not configured.
type Noop struct{}

func (Noop) Check(context.Context, ...string) error { return nil }
func (Noop) Fail(context.Context, ...string) error  { return nil }
func (Noop) Reset(context.Context, ...string) error { return nil }
