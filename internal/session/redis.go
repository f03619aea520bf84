package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session state in Redis so several API replicas can share it.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a store; prefix is prepended to every key.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Load unmarshals the cached JSON payload into dst.
func (s *RedisStore) Load(ctx context.Context, key string, dst any) error {
	if s == nil || s.client == nil {
		return errors.New("session: redis client not configured")
	}
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, dst)
}

// Save serialises v as JSON and stores it with the given TTL.
func (s *RedisStore) Save(ctx context.Context, key string, v any, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return errors.New("session: redis client not configured")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.prefix+key, data, ttl).Err()
}

// Delete removes the key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return errors.New("session: redis client not configured")
	}
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errors.New("session: redis client not configured")
	}
	return s.client.Ping(ctx).Err()
}
