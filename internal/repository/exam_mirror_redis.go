package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisExamMirror stores snapshots as plain Redis strings without expiry.
type RedisExamMirror struct {
	rdb *redis.Client
}

// NewRedisExamMirror creates a new RedisExamMirror.
func NewRedisExamMirror(rdb *redis.Client) *RedisExamMirror {
	return &RedisExamMirror{rdb: rdb}
}

func (r *RedisExamMirror) Load(ctx context.Context, key string) ([]byte, error) {
	payload, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMirrorMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return payload, nil
}

func (r *RedisExamMirror) Store(ctx context.Context, key string, payload []byte) error {
	if err := r.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisExamMirror) Remove(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}
