package cache

import (
	"context"
	"errors"
	"time"

	"flagpole/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is the shared backend, independent of process lifetime. Connectivity
// faults never reach the caller: Get degrades to a miss, writes are dropped
// with a warning.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("redis get failed, treating as miss", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		logger.Warn("redis set failed, skipping cache write", zap.String("key", key), zap.Error(err))
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		logger.Warn("redis delete failed", zap.String("key", key), zap.Error(err))
	}
}

// DeletePattern scans the whole keyspace for matches. O(keyspace) and known
// to be non-optimal; fine at this system's scale. A production-grade remote
// backend should keep a server-side index and delete in one round trip.
func (r *Redis) DeletePattern(ctx context.Context, pattern string) {
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			r.deleteBatch(ctx, keys)
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		logger.Warn("redis scan failed during pattern delete", zap.String("pattern", pattern), zap.Error(err))
		return
	}
	if len(keys) > 0 {
		r.deleteBatch(ctx, keys)
	}
}

func (r *Redis) deleteBatch(ctx context.Context, keys []string) {
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("redis batch delete failed", zap.Int("keys", len(keys)), zap.Error(err))
	}
}

func (r *Redis) IsAvailable(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	return r.client.Ping(pingCtx).Err() == nil
}
