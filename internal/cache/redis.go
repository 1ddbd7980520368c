package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabloom-cli/internal/metrics"
)

const namespace = "tabloom:"

// Redis stores entries under the "tabloom:" namespace. Read and write
// failures are logged and the value is computed directly.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, addr, password string, db int, log *zap.Logger) (*Redis, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("Redis cache initialized", zap.String("addr", addr), zap.Int("db", db))
	return &Redis{client: client, log: log}, nil
}

func (r *Redis) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn ComputeFunc) ([]byte, error) {
	data, err := r.client.Get(ctx, namespace+key).Bytes()
	switch {
	case err == nil:
		metrics.CacheHits.WithLabelValues("redis").Inc()
		r.log.Debug("cache hit", zap.String("key", key))
		return data, nil
	case !errors.Is(err, redis.Nil):
		r.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	metrics.CacheMisses.WithLabelValues("redis").Inc()

	data, err = fn(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.client.Set(ctx, namespace+key, data, ttl).Err(); err != nil {
		r.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return data, nil
}

func (r *Redis) Invalidate(ctx context.Context, prefix string) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, namespace+prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			r.log.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		n++
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("failed to iterate cache keys: %w", err)
	}
	r.log.Info("cache invalidated", zap.String("prefix", prefix), zap.Int("keys", n))
	return n, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
