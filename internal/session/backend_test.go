package session

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisBackendRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackend(client, "session:sid-1:")
	ctx := context.Background()

	if err := backend.Set(ctx, KeyToken, "a.b.c", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := backend.Get(ctx, KeyToken)
	if err != nil || value != "a.b.c" {
		t.Fatalf("expected value back, got %q (%v)", value, err)
	}

	// Keys are namespaced per browser session.
	other := NewRedisBackend(client, "session:sid-2:")
	if _, err := other.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other session, got %v", err)
	}

	if err := backend.Delete(ctx, KeyToken); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := backend.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRedisBackendExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackend(client, "session:sid-1:")
	ctx := context.Background()

	if err := backend.Set(ctx, KeyToken, "a.b.c", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := backend.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL elapsed, got %v", err)
	}
}
