package markerstore

import (
	"context"
	"sync"
	"time"
)

type MemMarkerStore struct {
	Window time.Duration
	// defaults to time.Now
	Clock func() time.Time

	lk      sync.Mutex
	markers map[string]time.Time
}

var _ MarkerStore = (*MemMarkerStore)(nil)

func NewMemMarkerStore(window time.Duration) *MemMarkerStore {
	return &MemMarkerStore{
		Window:  window,
		Clock:   time.Now,
		markers: make(map[string]time.Time),
	}
}

func (s *MemMarkerStore) live(key string, now time.Time) (time.Time, bool) {
	started, ok := s.markers[key]
	if !ok {
		return time.Time{}, false
	}
	if now.Sub(started) >= s.Window {
		delete(s.markers, key)
		return time.Time{}, false
	}
	return started, true
}

func (s *MemMarkerStore) TryMark(ctx context.Context, key string, now time.Time) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	if _, ok := s.live(key, now); ok {
		return false, nil
	}
	s.markers[key] = now
	return true, nil
}

func (s *MemMarkerStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	clock := s.Clock
	if clock == nil {
		clock = time.Now
	}
	started, ok := s.live(key, clock())
	return started, ok, nil
}
