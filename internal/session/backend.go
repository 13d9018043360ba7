package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend is one physical location a session value can live in. The Store
// fans every write out to two backends and repairs drift between them on read;
// callers never see the backends individually.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
}

// RelaxedSetter is implemented by backends that support a second, less strict
// write mode (cookies without SameSite/Secure attributes). The Store retries
// through it once when a strict write fails verification.
type RelaxedSetter interface {
	SetRelaxed(ctx context.Context, key, value string, expiresAt time.Time) error
}

// ErrNotFound reports a key absent from a backend.
var ErrNotFound = errors.New("session: key not found")

// MemoryBackend is an in-process Backend used in tests and as a degraded
// fallback when Redis is unreachable.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string]memoryEntry
	now    func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryBackend builds an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]memoryEntry), now: time.Now}
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.values[key]
	if !ok {
		return "", ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(b.now()) {
		delete(b.values, key)
		return "", ErrNotFound
	}
	return entry.value, nil
}

// Set implements Backend.
func (b *MemoryBackend) Set(_ context.Context, key, value string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = memoryEntry{value: value, expiresAt: expiresAt}
	return nil
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}

// RedisBackend persists session values in Redis under a per-browser-session
// namespace, so the portal survives restarts without logging everyone out.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend builds a Backend over the given client. The prefix should
// identify one browser session (e.g. "session:<sid>:").
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	value, err := b.client.Get(ctx, b.prefix+key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set implements Backend.
func (b *RedisBackend) Set(ctx context.Context, key, value string, expiresAt time.Time) error {
	ttl := time.Duration(0)
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
		if ttl <= 0 {
			// Already expired; store briefly so read-back verification still
			// sees the write, expiry metadata rejects it on Get.
			ttl = time.Second
		}
	}
	return b.client.Set(ctx, b.prefix+key, value, ttl).Err()
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.prefix+key).Err()
}
