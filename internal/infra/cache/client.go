// Package cache is a typed JSON layer over a byte-oriented port.Cache backend.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/user-directory/internal/core/port"
)

// DefaultTTL applies when Set is called without a positive ttl.
const DefaultTTL = time.Hour

// Option customizes a Client.
type Option func(*Client)

// WithKeyPrefix namespaces every key as "<prefix>:<key>".
func WithKeyPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = prefix
	}
}

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithLogger sets the logger used for discarded entries.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type Client struct {
	backend    port.Cache
	prefix     string
	defaultTTL time.Duration
	logger     *zap.Logger
}

func NewClient(backend port.Cache, opts ...Option) *Client {
	c := &Client{
		backend:    backend,
		defaultTTL: DefaultTTL,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get loads and decodes key. A miss and an undecodable entry both report
// found=false with a nil error; undecodable entries are dropped best-effort.
// Only backend failures surface as errors.
func Get[T any](ctx context.Context, c *Client, key string) (T, bool, error) {
	var zero T

	raw, err := c.backend.Get(ctx, c.key(key))
	if err != nil {
		if errors.Is(err, port.ErrCacheMiss) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("cache get %s: %w", key, err)
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		if delErr := c.backend.Delete(ctx, c.key(key)); delErr != nil {
			c.logger.Debug("failed to drop undecodable cache entry", zap.String("key", key), zap.Error(delErr))
		}
		return zero, false, nil
	}

	return value, true, nil
}

// Set encodes value and stores it under key for ttl, or the client default when ttl <= 0.
func Set[T any](ctx context.Context, c *Client, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.backend.Set(ctx, c.key(key), raw, ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (c *Client) Remove(ctx context.Context, key string) error {
	if err := c.backend.Delete(ctx, c.key(key)); err != nil && !errors.Is(err, port.ErrCacheMiss) {
		return fmt.Errorf("cache remove %s: %w", key, err)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := c.backend.Exists(ctx, c.key(key))
	if err != nil {
		return false, fmt.Errorf("cache exists %s: %w", key, err)
	}
	return ok, nil
}

// HealthCheck reports backend readiness when the backend supports it.
func (c *Client) HealthCheck(ctx context.Context) error {
	if hc, ok := c.backend.(port.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *Client) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}
