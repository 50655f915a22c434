package publish

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// HashStore remembers the artifact hash last deployed per form.
type HashStore interface {
	Get(ctx context.Context, formID string) (string, error)
	Set(ctx context.Context, formID, hash string) error
}

// MemoryHashes is a process-local HashStore.
type MemoryHashes struct {
	mu     sync.Mutex
	hashes map[string]string
}

func NewMemoryHashes() *MemoryHashes {
	return &MemoryHashes{hashes: make(map[string]string)}
}

func (m *MemoryHashes) Get(_ context.Context, formID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[formID], nil
}

func (m *MemoryHashes) Set(_ context.Context, formID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[formID] = hash
	return nil
}

// RedisHashes shares deployed hashes between service instances.
type RedisHashes struct {
	client *redis.Client
}

func NewRedisHashes(client *redis.Client) *RedisHashes {
	return &RedisHashes{client: client}
}

func hashKey(formID string) string {
	return "yoyaku:artifact:" + formID
}

func (r *RedisHashes) Get(ctx context.Context, formID string) (string, error) {
	val, err := r.client.Get(ctx, hashKey(formID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (r *RedisHashes) Set(ctx context.Context, formID, hash string) error {
	return r.client.Set(ctx, hashKey(formID), hash, 0).Err()
}
