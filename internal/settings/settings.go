// Package settings holds runtime-mutable switches shared by the scheduler and
// the admin API.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hanse-dev/eventbocker/internal/config"
	"github.com/redis/go-redis/v9"
)

// Toggle is the reminders on/off switch.
type Toggle interface {
	Enabled(ctx context.Context) (bool, error)
	SetEnabled(ctx context.Context, enabled bool) error
}

// Memory keeps the toggle in process memory. It resets on restart.
type Memory struct {
	enabled atomic.Bool
}

// NewMemory returns a Memory toggle with the given initial value.
func NewMemory(initial bool) *Memory {
	m := &Memory{}
	m.enabled.Store(initial)
	return m
}

// Enabled reports the current value.
func (m *Memory) Enabled(context.Context) (bool, error) { return m.enabled.Load(), nil }

// SetEnabled stores enabled.
func (m *Memory) SetEnabled(_ context.Context, enabled bool) error {
	m.enabled.Store(enabled)
	return nil
}

// Redis persists the toggle under a single key so it survives restarts and is
// shared by every process using the same Redis.
type Redis struct {
	client   *redis.Client
	key      string
	fallback bool
}

// NewRedis connects to Redis. fallback is reported while the key is unset.
func NewRedis(ctx context.Context, cfg config.RedisConfig, fallback bool) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client, key: cfg.Key, fallback: fallback}, nil
}

// Enabled reads the key, returning the fallback while it is unset.
func (r *Redis) Enabled(ctx context.Context) (bool, error) {
	v, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return r.fallback, nil
		}
		return false, fmt.Errorf("read %s: %w", r.key, err)
	}
	return v == "1", nil
}

// SetEnabled writes "1" or "0" without expiry.
func (r *Redis) SetEnabled(ctx context.Context, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	if err := r.client.Set(ctx, r.key, v, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", r.key, err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *Redis) Close() error { return r.client.Close() }
