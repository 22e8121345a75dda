package core

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const signInThrottlePrefix = "signin:failures:"

// RedisSignInThrottle counts failed sign-ins per key in a fixed window.
type RedisSignInThrottle struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

func NewRedisSignInThrottle(client *redis.Client, maxAttempts int, window time.Duration) *RedisSignInThrottle {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisSignInThrottle{client: client, maxAttempts: maxAttempts, window: window}
}

// Allow reports whether key is still below the failure limit.
func (t *RedisSignInThrottle) Allow(ctx context.Context, key string) (bool, error) {
	if t.maxAttempts <= 0 {
		return true, nil
	}
	n, err := t.client.Get(ctx, signInThrottlePrefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return n < t.maxAttempts, nil
}

// Fail records one failed attempt; the window starts with the first failure.
func (t *RedisSignInThrottle) Fail(ctx context.Context, key string) error {
	k := signInThrottlePrefix + key
	n, err := t.client.Incr(ctx, k).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return t.client.Expire(ctx, k, t.window).Err()
	}
	return nil
}

func (t *RedisSignInThrottle) Reset(ctx context.Context, key string) error {
	return t.client.Del(ctx, signInThrottlePrefix+key).Err()
}
