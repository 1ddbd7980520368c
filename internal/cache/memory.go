package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/KaramelBytes/tabloom-cli/internal/metrics"
)

type entry struct {
	val     []byte
	expires time.Time
}

// Memory is an in-process cache. Concurrent misses on one key share a
// single computation.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]entry{}, now: time.Now}
}

func (m *Memory) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.val, true
}

func (m *Memory) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn ComputeFunc) ([]byte, error) {
	if v, ok := m.get(key); ok {
		metrics.CacheHits.WithLabelValues("memory").Inc()
		return v, nil
	}
	metrics.CacheMisses.WithLabelValues("memory").Inc()
	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		if v, ok := m.get(key); ok {
			return v, nil
		}
		b, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		e := entry{val: b}
		if ttl > 0 {
			e.expires = m.now().Add(ttl)
		}
		m.mu.Lock()
		m.entries[key] = e
		m.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (m *Memory) Invalidate(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
