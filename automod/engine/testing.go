package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/castmod/castmod/automod/cachestore"
	"github.com/castmod/castmod/automod/countstore"
	"github.com/castmod/castmod/automod/modlog"
	"github.com/castmod/castmod/automod/rule"
)

// PlatformCall is one moderation action received by MockPlatform.
type PlatformCall struct {
	Action    rule.ActionType
	ChannelID string
	CastHash  string
	FID       int64
	Duration  time.Duration
}

// MockPlatform records every action it is asked to take. Actions listed in Fail return that error instead.
type MockPlatform struct {
	lk    sync.Mutex
	Calls []PlatformCall
	Fail  map[rule.ActionType]error
}

var _ Platform = (*MockPlatform)(nil)

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{Fail: make(map[rule.ActionType]error)}
}

func (p *MockPlatform) call(t rule.ActionType, channelID string, cast *Cast, d time.Duration) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.Calls = append(p.Calls, PlatformCall{
		Action:    t,
		ChannelID: channelID,
		CastHash:  cast.Hash,
		FID:       cast.Author.FID,
		Duration:  d,
	})
	return p.Fail[t]
}

func (p *MockPlatform) HideQuietly(ctx context.Context, channelID string, cast *Cast) error {
	return p.call(rule.ActionHideQuietly, channelID, cast, 0)
}

func (p *MockPlatform) WarnAndHide(ctx context.Context, channelID string, cast *Cast) error {
	return p.call(rule.ActionWarnAndHide, channelID, cast, 0)
}

func (p *MockPlatform) Mute(ctx context.Context, channelID string, cast *Cast) error {
	return p.call(rule.ActionMute, channelID, cast, 0)
}

func (p *MockPlatform) Ban(ctx context.Context, channelID string, cast *Cast) error {
	return p.call(rule.ActionBan, channelID, cast, 0)
}

func (p *MockPlatform) Cooldown(ctx context.Context, channelID string, cast *Cast, d time.Duration) error {
	return p.call(rule.ActionCooldown, channelID, cast, d)
}

// CallsFor returns the recorded actions of one type.
func (p *MockPlatform) CallsFor(t rule.ActionType) []PlatformCall {
	p.lk.Lock()
	defer p.lk.Unlock()
	var out []PlatformCall
	for _, c := range p.Calls {
		if c.Action == t {
			out = append(out, c)
		}
	}
	return out
}

func (p *MockPlatform) CallCount() int {
	p.lk.Lock()
	defer p.lk.Unlock()
	return len(p.Calls)
}

// MockCohosts answers cohost lookups from a fixed set of "<channel>/<fid>" keys.
type MockCohosts struct {
	lk      sync.Mutex
	Cohosts map[string]bool
	Err     error
	Lookups int
}

var _ CohostLookup = (*MockCohosts)(nil)

func NewMockCohosts() *MockCohosts {
	return &MockCohosts{Cohosts: make(map[string]bool)}
}

func (m *MockCohosts) Add(channelID string, fid int64) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.Cohosts[fmt.Sprintf("%s/%d", channelID, fid)] = true
}

func (m *MockCohosts) IsCohost(ctx context.Context, fid int64, channelID string) (bool, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.Lookups++
	if m.Err != nil {
		return false, m.Err
	}
	return m.Cohosts[fmt.Sprintf("%s/%d", channelID, fid)], nil
}

// EngineTestFixture returns an engine wired to in-memory stores and mock collaborators.
func EngineTestFixture() Engine {
	return Engine{
		Logger:   slog.Default(),
		Platform: NewMockPlatform(),
		Cohosts:  NewMockCohosts(),
		Log:      modlog.NewMemLog(),
		Counters: countstore.NewMemCountStore(),
		Cache:    cachestore.NewMemCacheStore(100, time.Hour),
	}
}

// CastFixture builds a top-level cast by an active author.
func CastFixture(hash, text string, fid int64) *Cast {
	return &Cast{
		Hash:      hash,
		ParentURL: "https://warpcast.com/~/channel/test",
		Text:      text,
		Author: Author{
			FID:           fid,
			Username:      fmt.Sprintf("user%d", fid),
			DisplayName:   fmt.Sprintf("User %d", fid),
			FollowerCount: 100,
			ActiveStatus:  ActiveStatusActive,
		},
	}
}
