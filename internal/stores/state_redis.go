package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore is a shared StateStore for multi-instance deployments,
// where the initiating and completing requests may hit different processes.
// Single use relies on GETDEL, so the check-and-delete is atomic on the
// server side.
type RedisStateStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStateStore creates a store using the given key prefix
// ("pkce" when empty). now defaults to time.Now.
func NewRedisStateStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *RedisStateStore {
	if prefix == "" {
		prefix = "pkce"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStateStore{redis: redisClient, prefix: prefix, now: now}
}

func (s *RedisStateStore) key(state string) string {
	return s.prefix + ":" + state
}

func (s *RedisStateStore) Save(ctx context.Context, state string, record StateRecord, ttl time.Duration) error {
	record.ExpiresAt = s.now().Add(ttl)
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(state), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStateBackend, err)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (StateRecord, error) {
	data, err := s.redis.GetDel(ctx, s.key(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return StateRecord{}, ErrStateNotFound
		}
		return StateRecord{}, fmt.Errorf("%w: %v", ErrStateBackend, err)
	}

	var record StateRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return StateRecord{}, ErrStateNotFound
	}
	// Redis TTL already bounds the key lifetime; the embedded expiry guards
	// against clock drift between writer and reader.
	if s.now().After(record.ExpiresAt) {
		return StateRecord{}, ErrStateNotFound
	}
	return record, nil
}
