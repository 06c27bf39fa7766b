// Package lock provides a Redis-backed advisory lock so only one gateway
// instance runs a given reconciliation job at a time. Acquisition is a
// single non-blocking attempt: losing the race means another instance is
// already doing the work, so the caller just skips the cycle.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is the minimal key-value contract the coordinator needs. Tests swap
// in an in-memory implementation.
type Store interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, value string) (bool, error)
}

// releaseScript deletes the key only when it still holds our token, so an
// instance whose lock already expired cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisStore) ReleaseIfOwner(ctx context.Context, key, value string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.client, []string{key}, value).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MemoryStore is a process-local Store for single-instance deployments and
// tests. TTLs are honoured lazily on the next acquisition attempt.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   string
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok && time.Now().Before(entry.expires) {
		return false, nil
	}
	s.entries[key] = memoryEntry{value: value, expires: time.Now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) ReleaseIfOwner(ctx context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || entry.value != value {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// Coordinator hands out named locks with a TTL. The TTL is not renewed while
// the holder works; a job outliving its TTL loses exclusivity silently.
// TODO: heartbeat renewal for jobs whose runtime can exceed the TTL.
type Coordinator struct {
	store  Store
	logger zerolog.Logger

	mu     sync.Mutex
	tokens map[string]string
}

func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{
		store:  store,
		logger: log.With().Str("component", "lock_coordinator").Logger(),
		tokens: make(map[string]string),
	}
}

// Acquire makes one attempt at the named lock. False means either another
// holder has it or the store is unreachable; both are treated as "skip".
func (c *Coordinator) Acquire(ctx context.Context, name string, ttl time.Duration) bool {
	token := uuid.New().String()
	ok, err := c.store.SetNX(ctx, "lock:"+name, token, ttl)
	if err != nil {
		c.logger.Warn().Err(err).Str("lock", name).Msg("lock acquisition failed")
		return false
	}
	if !ok {
		return false
	}
	c.mu.Lock()
	c.tokens[name] = token
	c.mu.Unlock()
	return true
}

// Release gives up the named lock if this coordinator still owns it. A lock
// that expired and was re-acquired elsewhere is left untouched.
func (c *Coordinator) Release(ctx context.Context, name string) {
	c.mu.Lock()
	token, held := c.tokens[name]
	delete(c.tokens, name)
	c.mu.Unlock()
	if !held {
		return
	}

	ok, err := c.store.ReleaseIfOwner(ctx, "lock:"+name, token)
	if err != nil {
		c.logger.Warn().Err(err).Str("lock", name).Msg("lock release failed")
		return
	}
	if !ok {
		c.logger.Debug().Str("lock", name).Msg("lock already expired or superseded")
	}
}
