package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore is a Redis-backed Store for deployments where several gateway
// instances share one session space.
type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client, prefix: "session:"}
}

func (s *redisStore) key(handle string) string {
	return s.prefix + handle
}

func (s *redisStore) Set(ctx context.Context, handle string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	ttl := time.Until(rec.ExpiresAt) + expiredRetention
	if ttl <= 0 {
		return s.client.Del(ctx, s.key(handle)).Err()
	}

	return s.client.Set(ctx, s.key(handle), data, ttl).Err()
}

func (s *redisStore) Get(ctx context.Context, handle string) (Record, error) {
	val, err := s.client.Get(ctx, s.key(handle)).Result()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("session: redis get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return Record{}, fmt.Errorf("session: unmarshal: %w", err)
	}
	return rec, nil
}

func (s *redisStore) Delete(ctx context.Context, handle string) error {
	return s.client.Del(ctx, s.key(handle)).Err()
}
