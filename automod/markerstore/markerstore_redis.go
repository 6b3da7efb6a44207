package markerstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisMarkerPrefix = "castmod/marker/"

// RedisMarkerStore keeps markers as plain string keys holding the RFC 3339 start time, expired by redis itself.
type RedisMarkerStore struct {
	Client *redis.Client
	Window time.Duration
}

var _ MarkerStore = (*RedisMarkerStore)(nil)

func NewRedisMarkerStore(rdb *redis.Client, window time.Duration) *RedisMarkerStore {
	return &RedisMarkerStore{
		Client: rdb,
		Window: window,
	}
}

func (s *RedisMarkerStore) TryMark(ctx context.Context, key string, now time.Time) (bool, error) {
	ok, err := s.Client.SetNX(ctx, redisMarkerPrefix+key, now.UTC().Format(time.RFC3339Nano), s.Window).Result()
	if err != nil {
		return false, fmt.Errorf("setting marker %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisMarkerStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := s.Client.Get(ctx, redisMarkerPrefix+key).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	} else if err != nil {
		return time.Time{}, false, fmt.Errorf("reading marker %s: %w", key, err)
	}
	started, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing marker %s: %w", key, err)
	}
	return started, true, nil
}
