package securestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Keys persisted by the client.
const (
	KeyJWT           = "jwt"
	KeyTermsAccepted = "termsAccepted"
	KeyUserId        = "userId"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("secure store: key not found")

// Store is the on-device key/value contract for secrets and flags.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores the value, replacing any previous one.
	Set(ctx context.Context, key string, value string) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ------------------------------------------------------------------------------

type MemoryStore struct {
	values map[string]string
	mutex  sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if value, ok := s.values[key]; ok {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

func (s *MemoryStore) Set(_ context.Context, key string, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.values, key)
	return nil
}

// ------------------------------------------------------------------------------

type RedisStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func createKey(namespace, key string) string {
	return fmt.Sprintf("%s:secure:%s", namespace, key)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, createKey(s.namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value string) error {
	return s.client.Set(ctx, createKey(s.namespace, key), value, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, createKey(s.namespace, key)).Err()
}
