package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map and TTL support.
// It is both the degradation target when Redis is unreachable and the
// only store in single-binary deployments.
type MemoryStore struct {
	items    map[string]*memoryItem
	mu       sync.RWMutex
	maxSize  int
	now      func() time.Time
	stopChan chan struct{}
	stopped  bool
}

type memoryItem struct {
	data       []byte
	expiration time.Time
	accessed   time.Time
}

// NewMemoryStore creates a new memory store
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 10000
	}

	ms := &MemoryStore{
		items:    make(map[string]*memoryItem),
		maxSize:  maxSize,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	go ms.janitor()

	return ms
}

// Get retrieves a value; expired entries behave as misses
func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	item, exists := ms.items[key]
	if !exists {
		return nil, ErrCacheMiss
	}

	if ms.now().After(item.expiration) {
		delete(ms.items, key)
		return nil, ErrCacheMiss
	}

	item.accessed = ms.now()
	return item.data, nil
}

// Set stores a value with the given TTL
func (ms *MemoryStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.items[key]; !exists && len(ms.items) >= ms.maxSize {
		ms.evictOldest()
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	ms.items[key] = &memoryItem{
		data:       data,
		expiration: ms.now().Add(ttl),
		accessed:   ms.now(),
	}

	return nil
}

// Delete removes a key
func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.items, key)
	return nil
}

// MultiGet returns all found, non-expired keys
func (ms *MemoryStore) MultiGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if data, err := ms.Get(ctx, key); err == nil {
			result[key] = data
		}
	}
	return result, nil
}

// MultiSet stores all pairs under the same TTL
func (ms *MemoryStore) MultiSet(ctx context.Context, pairs map[string][]byte, ttl time.Duration) error {
	for key, data := range pairs {
		if err := ms.Set(ctx, key, data, ttl); err != nil {
			return err
		}
	}
	return nil
}

// Ping always succeeds for the in-process store
func (ms *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Size returns the current item count
func (ms *MemoryStore) Size() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return len(ms.items)
}

// Flush removes all items
func (ms *MemoryStore) Flush() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.items = make(map[string]*memoryItem)
}

// evictOldest removes the least recently accessed item. Caller holds the lock.
func (ms *MemoryStore) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, item := range ms.items {
		if first || item.accessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.accessed
			first = false
		}
	}

	if oldestKey != "" {
		delete(ms.items, oldestKey)
	}
}

// janitor periodically removes expired items
func (ms *MemoryStore) janitor() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.removeExpired()
		case <-ms.stopChan:
			return
		}
	}
}

func (ms *MemoryStore) removeExpired() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	for key, item := range ms.items {
		if now.After(item.expiration) {
			delete(ms.items, key)
		}
	}
}

// Close stops the janitor
func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.stopped {
		close(ms.stopChan)
		ms.stopped = true
	}
	return nil
}
