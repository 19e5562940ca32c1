package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStoreBasicOperations(t *testing.T) {
	ms := NewMemoryStore(100)
	defer ms.Close()

	ctx := context.Background()

	if err := ms.Set(ctx, "key1", []byte("value1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	data, err := ms.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "value1" {
		t.Errorf("Expected 'value1', got %s", data)
	}

	if err := ms.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := ms.Get(ctx, "key1"); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after delete, got %v", err)
	}
}

func TestMemoryStoreExpiration(t *testing.T) {
	ms := NewMemoryStore(100)
	defer ms.Close()

	now := time.Now()
	ms.now = func() time.Time { return now }

	ctx := context.Background()

	if err := ms.Set(ctx, "short", []byte("v"), 60*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Inside the TTL the value is served.
	now = now.Add(30 * time.Second)
	if _, err := ms.Get(ctx, "short"); err != nil {
		t.Fatalf("Expected hit at 30s, got %v", err)
	}

	// One second past the TTL it behaves as a miss.
	now = now.Add(31 * time.Second)
	if _, err := ms.Get(ctx, "short"); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss at 61s, got %v", err)
	}
}

func TestMemoryStoreEviction(t *testing.T) {
	ms := NewMemoryStore(3)
	defer ms.Close()

	now := time.Now()
	ms.now = func() time.Time { return now }

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		now = now.Add(time.Second)
		if err := ms.Set(ctx, fmt.Sprintf("key%d", i), []byte("v"), time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	// Touch key0 so key1 becomes the least recently accessed.
	now = now.Add(time.Second)
	if _, err := ms.Get(ctx, "key0"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	now = now.Add(time.Second)
	if err := ms.Set(ctx, "key3", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if ms.Size() != 3 {
		t.Errorf("Expected size 3 after eviction, got %d", ms.Size())
	}
	if _, err := ms.Get(ctx, "key1"); err != ErrCacheMiss {
		t.Errorf("Expected key1 to be evicted, got %v", err)
	}
	if _, err := ms.Get(ctx, "key0"); err != nil {
		t.Errorf("Expected key0 to survive eviction, got %v", err)
	}
}

func TestMemoryStoreMultiOperations(t *testing.T) {
	ms := NewMemoryStore(100)
	defer ms.Close()

	ctx := context.Background()

	pairs := map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}
	if err := ms.MultiSet(ctx, pairs, time.Minute); err != nil {
		t.Fatalf("MultiSet failed: %v", err)
	}

	result, err := ms.MultiGet(ctx, []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("MultiGet failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 found keys, got %d", len(result))
	}
	if string(result["a"]) != "1" {
		t.Errorf("Expected '1' for key a, got %s", result["a"])
	}
}
