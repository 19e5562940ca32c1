package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent or past its TTL.
var ErrCacheMiss = errors.New("cache: key not found")

// Store is the key-value store contract shared by the Redis adapter and the
// in-process memory store. Values are opaque JSON payloads; a Get after the
// entry's TTL behaves as a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// MultiGet returns the subset of keys that were found. A missing key is
	// simply absent from the result; one key's failure must not block others.
	MultiGet(ctx context.Context, keys []string) (map[string][]byte, error)
	MultiSet(ctx context.Context, pairs map[string][]byte, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}
