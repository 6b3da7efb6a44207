package sweep

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/castmod/castmod/automod/engine"
	"github.com/castmod/castmod/automod/markerstore"
	"github.com/castmod/castmod/automod/rule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	lk  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.now = c.now.Add(d)
}

func linksChannel() *rule.Channel {
	return &rule.Channel{
		ID: "memes",
		RuleSets: []*rule.RuleSet{{
			ID:      "no-links",
			Target:  rule.TargetAll,
			Rule:    rule.NewCondition(&rule.LinksArgs{MaxLinks: 0}, false),
			Actions: []rule.Action{{Type: rule.ActionHideQuietly}},
		}},
	}
}

// every third cast carries a link
func castText(i int) string {
	if i%3 == 0 {
		return fmt.Sprintf("check this out https://example.com/%d", i)
	}
	return "gm"
}

func testSweeper(t *testing.T, src Source) (*Sweeper, *engine.Engine, *fakeClock) {
	eng := engine.EngineTestFixture()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	markers := markerstore.NewMemMarkerStore(markerstore.DefaultWindow)
	markers.Clock = clock.Now

	opts := DefaultOptions()
	opts.PostDelay = 0
	s := NewSweeper(&eng, src, markers, opts)
	s.Clock = clock.Now
	return s, &eng, clock
}

func TestSweepLimitReached(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	src := NewStaticSource(1200, 100, castText)
	s, eng, _ := testSweeper(t, src)
	platform := eng.Platform.(*engine.MockPlatform)

	st, err := s.Run(ctx, linksChannel())
	require.NoError(t, err)
	assert.Equal(StateLimitReached, st.State)
	assert.Equal(5, st.Pages)
	assert.Equal(5, src.FetchCount())
	assert.Equal(500, st.CastsChecked)
	assert.Equal(500, st.CastsProcessed)
	// 0, 3, ... 498
	assert.Equal(167, st.CastsActioned)
	assert.Equal(167, platform.CallCount())
	assert.NotNil(st.FinishedAt)

	entries, err := eng.Log.List(ctx, "memes", 1000)
	require.NoError(t, err)
	assert.Len(entries, 167)
}

func TestSweepLimitCountsProcessedCasts(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	src := NewStaticSource(1200, 100, castText)
	s, eng, clock := testSweeper(t, src)

	// the first two pages already went through the engine; only the 67 casts with links were recorded
	for _, page := range src.Pages[:2] {
		for _, c := range page {
			_, err := eng.ProcessCast(ctx, linksChannel(), c)
			require.NoError(t, err)
		}
	}
	platform := eng.Platform.(*engine.MockPlatform)
	before := platform.CallCount()
	assert.Equal(67, before)

	st, err := s.Run(ctx, linksChannel())
	require.NoError(t, err)
	assert.Equal(StateLimitReached, st.State)
	assert.Equal(5, st.Pages)
	assert.Equal(500, st.CastsChecked)
	assert.Equal(433, st.CastsProcessed)
	assert.Equal(100, platform.CallCount()-before)

	// a second sweep once the window passes acts on nothing new
	clock.Advance(markerstore.DefaultWindow)
	st, err = s.Run(ctx, linksChannel())
	require.NoError(t, err)
	assert.Equal(333, st.CastsProcessed)
	assert.Equal(0, st.CastsActioned)
	assert.Equal(167, platform.CallCount())
}

func TestSweepCompleted(t *testing.T) {
	assert := assert.New(t)
	src := NewStaticSource(250, 100, castText)
	s, _, _ := testSweeper(t, src)

	st, err := s.Run(context.Background(), linksChannel())
	require.NoError(t, err)
	assert.Equal(StateCompleted, st.State)
	assert.Equal(3, st.Pages)
	assert.Equal(250, st.CastsChecked)
	require.NotNil(t, st.ReachedBack)
	assert.True(StaticSourceEpoch.Add(-249*time.Minute).Equal(*st.ReachedBack))

	last, ok := s.Status("memes")
	assert.True(ok)
	assert.Equal(StateCompleted, last.State)
}

func TestSweepFailed(t *testing.T) {
	assert := assert.New(t)
	src := NewStaticSource(1200, 100, castText)
	src.FailAt = 2
	src.Err = errors.New("feed unavailable")
	s, _, _ := testSweeper(t, src)

	st, err := s.Run(context.Background(), linksChannel())
	assert.Error(err)
	require.NotNil(t, st)
	assert.Equal(StateFailed, st.State)
	assert.Equal(2, st.Pages)
	assert.Equal(200, st.CastsChecked)
	assert.Equal("feed unavailable", st.Error)
}

type panicPlatform struct {
	*engine.MockPlatform
}

func (panicPlatform) HideQuietly(ctx context.Context, channelID string, cast *engine.Cast) error {
	panic("platform client bug")
}

func TestSweepCastErrorsDontStopSweep(t *testing.T) {
	assert := assert.New(t)
	src := NewStaticSource(200, 100, castText)
	s, eng, _ := testSweeper(t, src)
	eng.Platform = panicPlatform{engine.NewMockPlatform()}

	st, err := s.Run(context.Background(), linksChannel())
	require.NoError(t, err)
	assert.Equal(StateCompleted, st.State)
	assert.Equal(2, st.Pages)
	assert.Equal(67, st.Errors)
	assert.Equal(133, st.CastsProcessed)
	assert.Equal(0, st.CastsActioned)
}

func TestTriggerMutualExclusion(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	src := NewStaticSource(300, 100, castText)
	s, _, clock := testSweeper(t, src)

	active, err := s.IsActive(ctx, "memes")
	assert.NoError(err)
	assert.False(active)

	first, err := s.Trigger(ctx, linksChannel())
	require.NoError(t, err)
	assert.True(first.Started)
	assert.True(first.Active)
	assert.Equal(MessageStarted, first.Message)

	second, err := s.Trigger(ctx, linksChannel())
	require.NoError(t, err)
	assert.False(second.Started)
	assert.True(second.Active)
	assert.Equal(MessageAlreadyActive, second.Message)

	// other channels are independent
	other := linksChannel()
	other.ID = "degen"
	third, err := s.Trigger(ctx, other)
	require.NoError(t, err)
	assert.True(third.Started)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(shutdownCtx))

	st, ok := s.Status("memes")
	require.True(t, ok)
	assert.Equal(StateCompleted, st.State)
	assert.Equal(300, st.CastsChecked)

	// the marker outlives the sweep until the window passes
	active, err = s.IsActive(ctx, "memes")
	assert.NoError(err)
	assert.True(active)
	_, err = s.Run(ctx, linksChannel())
	assert.ErrorIs(err, ErrSweepActive)

	clock.Advance(markerstore.DefaultWindow)
	active, err = s.IsActive(ctx, "memes")
	assert.NoError(err)
	assert.False(active)
	again, err := s.Trigger(ctx, linksChannel())
	require.NoError(t, err)
	assert.True(again.Started)
	require.NoError(t, s.Shutdown(shutdownCtx))
}

func TestSweepReadOnly(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	src := NewStaticSource(100, 100, castText)
	s, eng, _ := testSweeper(t, src)
	eng.ReadOnly = true

	st, err := s.Run(ctx, linksChannel())
	require.NoError(t, err)
	assert.Equal(34, st.CastsActioned)
	assert.Equal(0, eng.Platform.(*engine.MockPlatform).CallCount())

	done, err := eng.Log.Processed(ctx, "memes", []string{"0x00000", "0x00003"})
	assert.NoError(err)
	assert.Empty(done)
}

type panicSource struct {
	*StaticSource
}

func (p panicSource) PageChannelCasts(ctx context.Context, channelID string) iter.Seq2[[]*engine.Cast, error] {
	return func(yield func([]*engine.Cast, error) bool) {
		for casts, err := range p.StaticSource.PageChannelCasts(ctx, channelID) {
			if !yield(casts, err) {
				return
			}
		}
		panic("feed decoder bug")
	}
}

func TestDetachedSweepPanicFails(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, _, _ := testSweeper(t, panicSource{NewStaticSource(150, 100, castText)})

	res, err := s.Trigger(ctx, linksChannel())
	require.NoError(t, err)
	assert.True(res.Started)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(shutdownCtx))

	st, ok := s.Status("memes")
	require.True(t, ok)
	assert.Equal(StateFailed, st.State)
	assert.Contains(st.Error, "feed decoder bug")
	assert.Equal(2, st.Pages)
	assert.Equal(150, st.CastsChecked)
	assert.NotNil(st.FinishedAt)

	// foreground sweeps fail the same way
	other := linksChannel()
	other.ID = "degen"
	fg, err := s.Run(ctx, other)
	assert.ErrorContains(err, "feed decoder bug")
	require.NotNil(t, fg)
	assert.Equal(StateFailed, fg.State)
}

func TestSweepPostDelaySpacesCastStarts(t *testing.T) {
	assert := assert.New(t)
	eng := engine.EngineTestFixture()
	opts := DefaultOptions()
	opts.PostDelay = 25 * time.Millisecond
	s := NewSweeper(&eng, NewStaticSource(4, 100, castText), markerstore.NewMemMarkerStore(markerstore.DefaultWindow), opts)

	start := time.Now()
	st, err := s.Run(context.Background(), linksChannel())
	require.NoError(t, err)
	assert.Equal(4, st.CastsProcessed)
	// the first cast starts straight away, each later one at least PostDelay after the one before
	assert.GreaterOrEqual(time.Since(start), 3*opts.PostDelay-time.Millisecond)
}
