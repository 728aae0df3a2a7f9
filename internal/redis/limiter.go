// Package redis keeps short-lived counters in Redis.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/challenge75/internal/config"
	"github.com/redis/go-redis/v9"
)

// LoginLimiter counts login attempts per email in fixed windows
type LoginLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
	logger *slog.Logger
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewLoginLimiter creates a limiter allowing max attempts per window
func NewLoginLimiter(client *redis.Client, cfg *config.AuthConfig, logger *slog.Logger) *LoginLimiter {
	return &LoginLimiter{
		client: client,
		max:    int64(cfg.LoginMaxAttempts),
		window: cfg.LoginWindow,
		logger: logger,
	}
}

// attemptsKey returns the Redis key for an email's attempt counter
func (l *LoginLimiter) attemptsKey(email string) string {
	return fmt.Sprintf("login:%s:attempts", strings.ToLower(strings.TrimSpace(email)))
}

// Allow records an attempt and reports whether it is within the limit
func (l *LoginLimiter) Allow(ctx context.Context, email string) (bool, error) {
	key := l.attemptsKey(email)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("counting login attempt: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("setting attempt window: %w", err)
		}
	}

	if count > l.max {
		l.logger.Warn("login attempts throttled", "attempts", count)
		return false, nil
	}
	return true, nil
}

// Reset clears the counter after a successful login
func (l *LoginLimiter) Reset(ctx context.Context, email string) error {
	if err := l.client.Del(ctx, l.attemptsKey(email)).Err(); err != nil {
		return fmt.Errorf("resetting login attempts: %w", err)
	}
	return nil
}

// Remaining returns how many attempts are left in the current window
func (l *LoginLimiter) Remaining(ctx context.Context, email string) (int64, error) {
	count, err := l.client.Get(ctx, l.attemptsKey(email)).Int64()
	if err != nil {
		if err == redis.Nil {
			return l.max, nil
		}
		return 0, fmt.Errorf("reading login attempts: %w", err)
	}
	if count >= l.max {
		return 0, nil
	}
	return l.max - count, nil
}
