package countstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// how long each period's bucket outlives the period itself; totals never expire
var bucketTTL = map[string]time.Duration{
	PeriodHour: 2 * time.Hour,
	PeriodDay:  48 * time.Hour,
}

type RedisCountStore struct {
	Client *redis.Client
	Prefix string
	// for tests; defaults to time.Now
	Clock func() time.Time
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(rdb *redis.Client) *RedisCountStore {
	return &RedisCountStore{
		Client: rdb,
		Prefix: "castmod/count/",
		Clock:  time.Now,
	}
}

func (s *RedisCountStore) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	c, err := s.Client.Get(ctx, s.Prefix+periodBucket(name, val, period, s.now())).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return c, err
}

// Increment updates every bucket in one MULTI round-trip.
func (s *RedisCountStore) Increment(ctx context.Context, name, val string) (int, error) {
	now := s.now()
	var total *redis.IntCmd
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range periods {
			key := s.Prefix + periodBucket(name, val, p, now)
			cmd := pipe.Incr(ctx, key)
			if ttl, ok := bucketTTL[p]; ok {
				pipe.Expire(ctx, key, ttl)
			}
			if p == PeriodTotal {
				total = cmd
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(total.Val()), nil
}
