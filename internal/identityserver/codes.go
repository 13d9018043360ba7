package identityserver

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CodeStore issues and consumes one-time verification codes. Codes are
// single-use and TTL-bound.
type CodeStore interface {
	Issue(ctx context.Context, identifier string) (string, error)
	Consume(ctx context.Context, identifier, code string) (bool, error)
}

// RedisCodeStore keeps codes in Redis so every identity instance sees them.
type RedisCodeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCodeStore builds a store with the given code lifetime.
func NewRedisCodeStore(client *redis.Client, ttl time.Duration) *RedisCodeStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCodeStore{client: client, ttl: ttl}
}

// Issue generates a six-digit code for the identifier, replacing any
// outstanding one.
func (s *RedisCodeStore) Issue(ctx context.Context, identifier string) (string, error) {
	code := generateCode()
	if err := s.client.Set(ctx, codeKey(identifier), code, s.ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// Consume checks the code and deletes it whether or not it matched, so a
// second submission of a once-correct code never succeeds.
func (s *RedisCodeStore) Consume(ctx context.Context, identifier, code string) (bool, error) {
	stored, err := s.client.GetDel(ctx, codeKey(identifier)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored != "" && stored == code, nil
}

func codeKey(identifier string) string {
	return "verification-code:" + identifier
}

func generateCode() string {
	id := uuid.New()
	n := binary.BigEndian.Uint32(id[0:4]) % 1000000
	return fmt.Sprintf("%06d", n)
}
