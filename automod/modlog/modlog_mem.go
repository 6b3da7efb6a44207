package modlog

import (
	"context"
	"sync"
	"time"
)

type MemLog struct {
	lk       sync.RWMutex
	channels map[string]*memChannel
}

type memChannel struct {
	byHash  map[string]*Entry
	entries []*Entry
}

var _ Log = (*MemLog)(nil)

func NewMemLog() *MemLog {
	return &MemLog{
		channels: make(map[string]*memChannel),
	}
}

func (l *MemLog) HasProcessed(ctx context.Context, channelID, castHash string) (bool, error) {
	l.lk.RLock()
	defer l.lk.RUnlock()
	ch, ok := l.channels[channelID]
	if !ok {
		return false, nil
	}
	_, ok = ch.byHash[castHash]
	return ok, nil
}

func (l *MemLog) Processed(ctx context.Context, channelID string, castHashes []string) (map[string]bool, error) {
	l.lk.RLock()
	defer l.lk.RUnlock()
	out := make(map[string]bool)
	ch, ok := l.channels[channelID]
	if !ok {
		return out, nil
	}
	for _, h := range castHashes {
		if _, ok := ch.byHash[h]; ok {
			out[h] = true
		}
	}
	return out, nil
}

func (l *MemLog) Record(ctx context.Context, e *Entry) error {
	l.lk.Lock()
	defer l.lk.Unlock()
	ch, ok := l.channels[e.ChannelID]
	if !ok {
		ch = &memChannel{byHash: make(map[string]*Entry)}
		l.channels[e.ChannelID] = ch
	}
	if _, ok := ch.byHash[e.CastHash]; ok {
		return nil
	}
	cp := *e
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.ID = uint(len(ch.entries) + 1)
	ch.byHash[e.CastHash] = &cp
	ch.entries = append(ch.entries, &cp)
	return nil
}

func (l *MemLog) List(ctx context.Context, channelID string, limit int) ([]*Entry, error) {
	l.lk.RLock()
	defer l.lk.RUnlock()
	if limit <= 0 {
		limit = DefaultListLimit
	}
	ch, ok := l.channels[channelID]
	if !ok {
		return []*Entry{}, nil
	}
	out := make([]*Entry, 0, min(limit, len(ch.entries)))
	for i := len(ch.entries) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *ch.entries[i]
		out = append(out, &cp)
	}
	return out, nil
}
