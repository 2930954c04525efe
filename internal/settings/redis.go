package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection parameters for the settings backend.
type RedisConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStore implements Store backed by a Redis/Valkey-compatible server.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the settings backend and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialBudget(cfg.DialTimeout))
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("settings backend unreachable: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func dialBudget(configured time.Duration) time.Duration {
	if configured <= 0 {
		return 2 * time.Second
	}
	return configured
}

// Get returns the stored value, mapping redis.Nil to ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("settings get %s: %w", key, err)
	}
	return value, nil
}

// Set stores a value without expiry; settings persist across sessions.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("settings set %s: %w", key, err)
	}
	return nil
}

// Close releases the client connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
