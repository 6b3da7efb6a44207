package cachestore

import (
	"context"
	"fmt"
)

// CacheStore holds values under (name, key), where name picks a namespace such as "cohost".
type CacheStore interface {
	// Get decodes a cached value into dst, and reports whether there was one.
	Get(ctx context.Context, name, key string, dst any) (bool, error)
	Set(ctx context.Context, name, key string, val any) error
	Purge(ctx context.Context, name, key string) error
}

// GetOrFill returns the cached value, or calls fill on a miss and caches what it returns. Fill errors
// are not cached. Failures talking to the cache itself are returned as-is.
func GetOrFill[T any](ctx context.Context, s CacheStore, name, key string, fill func(ctx context.Context) (T, error)) (T, error) {
	var val T
	found, err := s.Get(ctx, name, key, &val)
	if err != nil {
		return val, fmt.Errorf("checking %s cache: %w", name, err)
	}
	if found {
		return val, nil
	}
	val, err = fill(ctx)
	if err != nil {
		return val, err
	}
	if err := s.Set(ctx, name, key, val); err != nil {
		return val, fmt.Errorf("updating %s cache: %w", name, err)
	}
	return val, nil
}
