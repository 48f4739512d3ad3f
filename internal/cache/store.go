package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is the envelope stored for every cached payload. StoredAt lets
// fallback reads report how stale the served data is.
type Entry struct {
	StoredAt time.Time       `json:"stored_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Store is a key/value cache with TTL semantics. Get returns (nil, nil) on a
// miss; callers that want best-effort behavior log errors and treat them as
// misses.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a go-redis client as a Store.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *redisStore) Set(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	entry := Entry{
		StoredAt: time.Now().UTC(),
		Payload:  payload,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, ttl).Err()
}
