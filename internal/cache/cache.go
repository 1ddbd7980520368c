package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ComputeFunc produces the value of a missing key.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Cache is a get-or-compute store with TTLs and prefix invalidation.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn ComputeFunc) ([]byte, error)
	// Invalidate drops every key starting with prefix ("" drops all) and
	// returns how many were removed.
	Invalidate(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Fetch is GetOrCompute for JSON-encodable values.
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	b, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}

// Key joins parts with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Options selects and configures a backend.
type Options struct {
	Backend  string `mapstructure:"cache_backend"`
	Addr     string `mapstructure:"redis_addr"`
	Password string `mapstructure:"redis_password"`
	DB       int    `mapstructure:"redis_db"`
}

// New builds the configured backend: "memory" (default) or "redis".
func New(ctx context.Context, opt Options, log *zap.Logger) (Cache, error) {
	switch strings.ToLower(opt.Backend) {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, opt.Addr, opt.Password, opt.DB, log)
	}
	return nil, fmt.Errorf("unknown cache backend %q (memory|redis)", opt.Backend)
}
