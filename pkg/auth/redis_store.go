package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares one cookie jar between hosts through a redis key.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore stores the jar of profile under prefix+profile.
func NewRedisStore(client redis.UniversalClient, prefix, profile string) *RedisStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{client: client, key: prefix + profile}
}

// Ping verifies the server is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context) ([]Cookie, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Cookie{}, nil
		}
		return nil, fmt.Errorf("failed to read cookies from redis: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookies: %w", err)
	}
	if cookies == nil {
		cookies = []Cookie{}
	}
	return cookies, nil
}

// Save replaces the jar in one SET, so concurrent savers are last-writer-wins.
func (r *RedisStore) Save(ctx context.Context, cookies []Cookie) error {
	data, err := json.Marshal(Normalize(cookies))
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write cookies to redis: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete cookies from redis: %w", err)
	}
	return nil
}
