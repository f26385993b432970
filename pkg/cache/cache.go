// Package cache provides the bounded result cache injected into the data
// executors. Its lifecycle is owned by the process that constructs it.
package cache

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultMaxEntries bounds the in-memory cache when no size is configured.
const DefaultMaxEntries = 512

// Cache stores opaque values under string keys with a time to live.
type Cache interface {
	// Get returns the value for key and whether it was present and fresh
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl; a non-positive ttl never expires
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Close() error
}

// New builds a cache from a URL: "" or "memory://" for the in-process LRU,
// "redis://" or "rediss://" for Redis.
func New(ctx context.Context, cacheURL string, maxEntries int) (Cache, error) {
	if cacheURL == "" || strings.HasPrefix(cacheURL, "memory") {
		return NewMemory(maxEntries), nil
	}

	parsed, err := url.Parse(cacheURL)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}

	switch parsed.Scheme {
	case "redis", "rediss":
		return NewRedis(ctx, cacheURL)
	default:
		return nil, fmt.Errorf("unsupported cache scheme: %s", parsed.Scheme)
	}
}
