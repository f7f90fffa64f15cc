// Package cache implements cache-aside reads with explicit invalidation.
package cache

import (
	"context"
	"time"
)

// DefaultTTL applies when callers pass a zero ttl.
const DefaultTTL = 5 * time.Minute

// Cache stores JSON-encoded values under string keys. Implementations add
// their own namespace prefix; keys passed here are unprefixed.
type Cache interface {
	// Get decodes the value at key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a glob such as
	// "videos:course:3:user:*".
	DeletePattern(ctx context.Context, pattern string) error
}

// GetOrLoad returns the cached value at key, or calls load and caches its
// result. Cache failures never fail the read; they degrade to a load.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c != nil {
		var cached T
		if found, err := c.Get(ctx, key, &cached); err == nil && found {
			return cached, nil
		}
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if c != nil {
		_ = c.Set(ctx, key, value, ttl)
	}
	return value, nil
}

// Invalidate deletes keys and patterns, ignoring failures. Patterns are
// recognised by a '*' anywhere in the key.
func Invalidate(ctx context.Context, c Cache, keys ...string) {
	if c == nil {
		return
	}
	var plain []string
	for _, key := range keys {
		if containsGlob(key) {
			_ = c.DeletePattern(ctx, key)
			continue
		}
		plain = append(plain, key)
	}
	if len(plain) > 0 {
		_ = c.Delete(ctx, plain...)
	}
}

func containsGlob(key string) bool {
	for i := 0; i < len(key); i++ {
		if key[i] == '*' || key[i] == '?' {
			return true
		}
	}
	return false
}
