package channelstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/castmod/castmod/automod/rule"
)

type MemStore struct {
	lk       sync.RWMutex
	channels map[string][]byte
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{channels: make(map[string][]byte)}
}

func (s *MemStore) Get(ctx context.Context, channelID string) (*rule.Channel, error) {
	s.lk.RLock()
	raw, ok := s.channels[channelID]
	s.lk.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return rule.ParseChannel(raw)
}

func (s *MemStore) Put(ctx context.Context, ch *rule.Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encoding channel %s: %w", ch.ID, err)
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	s.channels[ch.ID] = raw
	return nil
}

func (s *MemStore) List(ctx context.Context) ([]string, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	ids := make([]string, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
