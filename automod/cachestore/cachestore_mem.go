package cachestore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemCacheStore keeps JSON encoded values in an expiring LRU, so callers never share mutable values with the cache.
type MemCacheStore struct {
	entries *expirable.LRU[string, []byte]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		entries: expirable.NewLRU[string, []byte](capacity, nil, ttl),
	}
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string, dst any) (bool, error) {
	b, ok := s.entries.Get(name + "/" + key)
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	s.entries.Add(name+"/"+key, b)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.entries.Remove(name + "/" + key)
	return nil
}

// Len is the number of live entries.
func (s *MemCacheStore) Len() int {
	return s.entries.Len()
}
