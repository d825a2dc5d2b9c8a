package port

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
// Callers use errors.Is to tell a miss apart from an infrastructure failure.
var ErrCacheMiss = errors.New("cache: miss")

// Cache exposes raw byte operations against a shared key-value cache with per-entry expiration.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// HealthChecker is implemented by backends that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
