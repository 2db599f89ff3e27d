// Package cache holds short-lived shared state that must survive across
// service replicas, such as idempotency keys for emergency alerts.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers which dispatch an idempotency key produced.
type IdempotencyStore interface {
	// Claim binds key to dispatchID unless the key is already bound.
	// When it is, Claim returns the existing dispatch ID and claimed=false.
	Claim(ctx context.Context, key, dispatchID string, ttl time.Duration) (existing string, claimed bool, err error)
	// Release forgets key, e.g. when the dispatch it guarded never started.
	Release(ctx context.Context, key string) error
}

// RedisIdempotencyStore implements IdempotencyStore with SET NX.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
}

func NewRedisIdempotencyStore(client *redis.Client, prefix string) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: prefix}
}

func (s *RedisIdempotencyStore) key(k string) string {
	return s.prefix + ":idem:" + k
}

func (s *RedisIdempotencyStore) Claim(ctx context.Context, key, dispatchID string, ttl time.Duration) (string, bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), dispatchID, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return dispatchID, true, nil
	}

	existing, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		ok, err = s.client.SetNX(ctx, s.key(key), dispatchID, ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("claim idempotency key: %w", err)
		}
		if ok {
			return dispatchID, true, nil
		}
		existing, err = s.client.Get(ctx, s.key(key)).Result()
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	return existing, false, nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Connect creates a Redis client and verifies connectivity.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type memoryEntry struct {
	dispatchID string
	expires    time.Time
}

// MemoryIdempotencyStore is a single-process IdempotencyStore used in tests
// and when no REDIS_ADDR is configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryIdempotencyStore) Claim(_ context.Context, key, dispatchID string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		return e.dispatchID, false, nil
	}
	s.entries[key] = memoryEntry{dispatchID: dispatchID, expires: now.Add(ttl)}
	return dispatchID, true, nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

var (
	_ IdempotencyStore = (*RedisIdempotencyStore)(nil)
	_ IdempotencyStore = (*MemoryIdempotencyStore)(nil)
)
