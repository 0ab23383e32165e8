package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/getkayan/teamwork/authz"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis for distributed deployments.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]authz.Code, bool, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis cache: get failed: %w", err)
	}

	var codes []authz.Code
	if err := json.Unmarshal([]byte(raw), &codes); err != nil {
		return nil, false, fmt.Errorf("redis cache: decode failed: %w", err)
	}
	return codes, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, codes []authz.Code, ttl time.Duration) error {
	raw, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("redis cache: encode failed: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis cache: set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis cache: delete failed: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
