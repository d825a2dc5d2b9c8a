// Package memory holds in-process implementations of the storage ports.
package memory

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/arklim/user-directory/internal/core/port"
)

const defaultCleanupInterval = 10 * time.Minute

// CacheStore is a single-process port.Cache used when no Redis is configured.
type CacheStore struct {
	items *gocache.Cache
}

var _ port.Cache = (*CacheStore)(nil)

// NewCacheStore returns a store that evicts expired entries every cleanupInterval.
func NewCacheStore(cleanupInterval time.Duration) *CacheStore {
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}
	return &CacheStore{items: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (s *CacheStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, port.ErrCacheMiss
	}
	raw, ok := v.([]byte)
	if !ok {
		return nil, port.ErrCacheMiss
	}
	return append([]byte(nil), raw...), nil
}

func (s *CacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("memory set: ttl must be positive")
	}
	s.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *CacheStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

func (s *CacheStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.items.Get(key)
	return ok, nil
}

// Keys lists live keys. Used by tests to assert which keys were written.
func (s *CacheStore) Keys() []string {
	items := s.items.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys
}
