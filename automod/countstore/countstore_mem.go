package countstore

import (
	"context"
	"sync"
	"time"
)

type MemCountStore struct {
	lk     sync.Mutex
	Counts map[string]int
	// for tests; defaults to time.Now
	Clock func() time.Time
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		Counts: make(map[string]int),
		Clock:  time.Now,
	}
}

func (s *MemCountStore) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.Counts[periodBucket(name, val, period, s.now())], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	now := s.now()
	for _, p := range periods {
		s.Counts[periodBucket(name, val, p, now)]++
	}
	return s.Counts[periodBucket(name, val, PeriodTotal, now)], nil
}
