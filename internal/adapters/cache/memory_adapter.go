package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zatekoja/trialmatch/internal/domain/providers"
)

// MemoryAdapter is an in-process CacheProvider backed by an expiring LRU.
// It is used when Redis is disabled. Entries share the TTL given at
// construction; the per-call ttl of Set is ignored.
type MemoryAdapter struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryAdapter creates an LRU cache holding up to size entries for ttl.
func NewMemoryAdapter(size int, ttl time.Duration) providers.CacheProvider {
	if size <= 0 {
		size = 1024
	}
	return &MemoryAdapter{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get retrieves a value from cache
func (m *MemoryAdapter) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

// Set stores a copy of value
func (m *MemoryAdapter) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Delete removes a value from cache
func (m *MemoryAdapter) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}
