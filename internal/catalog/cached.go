package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/KaramelBytes/tabloom-cli/internal/cache"
)

// KeyPrefix namespaces catalog entries in the shared cache.
const KeyPrefix = "catalog:"

// Cached memoizes a Store for TTL.
type Cached struct {
	Store Store
	Cache cache.Cache
	TTL   time.Duration
}

func NewCached(s Store, c cache.Cache, ttl time.Duration) *Cached {
	return &Cached{Store: s, Cache: c, TTL: ttl}
}

func (c *Cached) Questions(ctx context.Context, category, subcategory string, groups []string) ([]Group, error) {
	key := KeyPrefix + cache.Key("questions", category, subcategory, strings.Join(groups, ","))
	return cache.Fetch(ctx, c.Cache, key, c.TTL, func(ctx context.Context) ([]Group, error) {
		return c.Store.Questions(ctx, category, subcategory, groups)
	})
}

func (c *Cached) QuestionType(ctx context.Context, id string) (QuestionType, error) {
	key := KeyPrefix + cache.Key("type", id)
	return cache.Fetch(ctx, c.Cache, key, c.TTL, func(ctx context.Context) (QuestionType, error) {
		return c.Store.QuestionType(ctx, id)
	})
}

func (c *Cached) CrossQuestions(ctx context.Context, category, subcategory string) ([]string, error) {
	key := KeyPrefix + cache.Key("cross", category, subcategory)
	return cache.Fetch(ctx, c.Cache, key, c.TTL, func(ctx context.Context) ([]string, error) {
		return c.Store.CrossQuestions(ctx, category, subcategory)
	})
}

// Invalidate drops every cached catalog entry.
func (c *Cached) Invalidate(ctx context.Context) (int, error) {
	return c.Cache.Invalidate(ctx, KeyPrefix)
}
