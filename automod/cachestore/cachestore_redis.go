package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisCacheStore shares cached values between castmod replicas. Values are msgpack encoded by go-redis/cache.
type RedisCacheStore struct {
	codec  *cache.Cache
	ttl    time.Duration
	prefix string
}

var _ CacheStore = (*RedisCacheStore)(nil)

// NewRedisCacheStore puts a small in-process LFU in front of redis. Replicas may see a stale local entry for up to
// a minute after another replica purges it.
func NewRedisCacheStore(rdb *redis.Client, ttl time.Duration) *RedisCacheStore {
	return &RedisCacheStore{
		codec: cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(10_000, min(ttl, time.Minute)),
		}),
		ttl:    ttl,
		prefix: "castmod/cache/",
	}
}

func (s *RedisCacheStore) key(name, key string) string {
	return s.prefix + name + "/" + key
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string, dst any) (bool, error) {
	switch err := s.codec.Get(ctx, s.key(name, key), dst); {
	case errors.Is(err, cache.ErrCacheMiss):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val any) error {
	return s.codec.Set(&cache.Item{
		Ctx:   ctx,
		Key:   s.key(name, key),
		Value: val,
		TTL:   s.ttl,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	if err := s.codec.Delete(ctx, s.key(name, key)); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return err
	}
	return nil
}
