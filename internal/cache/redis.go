package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pulsedeck/internal/logger"
)

// RedisStore implements Store over a Redis connection. Connectivity
// transitions are logged for operational visibility; callers see plain
// errors and the tiered layer decides how to degrade.
type RedisStore struct {
	client *redis.Client
	log    logger.Logger

	mu        sync.Mutex
	connected bool
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewRedisStore creates a Redis store and verifies the connection
func NewRedisStore(cfg *RedisConfig, log logger.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Redis connection established", "addr", cfg.Addr)
	return &RedisStore{client: client, log: log, connected: true}, nil
}

// Get retrieves a value
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.markConnected()
		return nil, ErrCacheMiss
	}
	if err != nil {
		r.markDisconnected(err)
		return nil, err
	}
	r.markConnected()
	return data, nil
}

// Set stores a value with the given TTL
func (r *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	err := r.client.Set(ctx, key, data, ttl).Err()
	if err != nil {
		r.markDisconnected(err)
		return err
	}
	r.markConnected()
	return nil
}

// Delete removes a key
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	err := r.client.Del(ctx, key).Err()
	if err != nil {
		r.markDisconnected(err)
	}
	return err
}

// MultiGet fetches keys with a single MGET round trip
func (r *RedisStore) MultiGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		r.markDisconnected(err)
		return nil, err
	}
	r.markConnected()

	result := make(map[string][]byte, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			result[keys[i]] = []byte(s)
		}
	}
	return result, nil
}

// MultiSet writes all pairs in one pipeline. MSET has no per-key TTL, so
// each key is SET individually inside the pipeline.
func (r *RedisStore) MultiSet(ctx context.Context, pairs map[string][]byte, ttl time.Duration) error {
	if len(pairs) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for key, data := range pairs {
		pipe.Set(ctx, key, data, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.markDisconnected(err)
		return err
	}
	r.markConnected()
	return nil
}

// Ping checks connectivity
func (r *RedisStore) Ping(ctx context.Context) error {
	err := r.client.Ping(ctx).Err()
	if err != nil {
		r.markDisconnected(err)
		return err
	}
	r.markConnected()
	return nil
}

// Close closes the connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) markConnected() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connected {
		r.connected = true
		r.log.Info("Redis connection restored")
	}
}

func (r *RedisStore) markDisconnected(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connected {
		r.connected = false
		r.log.Warn("Redis connection lost", "error", err.Error())
	}
}
