package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss, got %v", err)
	}

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	value, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Expected hit, got %v", err)
	}
	if string(value) != "v" {
		t.Errorf("Expected 'v', got '%s'", value)
	}

	value[0] = 'x'
	again, _ := store.Get(ctx, "k")
	if string(again) != "v" {
		t.Error("Expected stored value to be isolated from callers")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Set(ctx, "k", []byte("v"), time.Minute)

	now = now.Add(59 * time.Second)
	if _, err := store.Get(ctx, "k"); err != nil {
		t.Errorf("Expected hit before expiry, got %v", err)
	}

	now = now.Add(time.Second)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected miss at expiry, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Expected expired entry dropped, got %d entries", store.Len())
	}
}

func TestMemoryStoreZeroTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Set(ctx, "k", []byte("v"), 0)
	if store.Len() != 0 {
		t.Error("Expected zero TTL to skip caching")
	}
}

func TestMemoryStoreEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.maxEntries = 3

	for i := 0; i < 5; i++ {
		store.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Duration(i+1)*time.Minute)
	}

	if store.Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", store.Len())
	}
	if _, err := store.Get(ctx, "k4"); err != nil {
		t.Errorf("Expected newest entry kept, got %v", err)
	}
	if _, err := store.Get(ctx, "k0"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected entry closest to expiry evicted, got %v", err)
	}
}

func TestNewWithoutRedis(t *testing.T) {
	store := New(context.Background(), RedisOptions{}, zerolog.Nop())
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Expected MemoryStore, got %T", store)
	}
}

func TestNewFallsBackWhenRedisUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	store := New(context.Background(), RedisOptions{Addr: addr}, zerolog.Nop())
	defer store.Close()
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Expected fallback to MemoryStore, got %T", store)
	}
}
