// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each record under "<prefix><request id>" with a Redis
// expiry, like a task result backend.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
	owned  bool
}

// NewRedisBackend uses client. When owned is true Close also closes client.
func NewRedisBackend(client redis.UniversalClient, prefix string, owned bool) *RedisBackend {
	if prefix == "" {
		prefix = "mediamix:ledger:"
	}
	return &RedisBackend{client: client, prefix: prefix, owned: owned}
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) Load(ctx context.Context, id string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (r *RedisBackend) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+id, data, ttl).Err()
}

func (r *RedisBackend) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisBackend) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
