package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/castmod/castmod/automod/countstore"
	"github.com/castmod/castmod/automod/modlog"
	"github.com/castmod/castmod/automod/rule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linksChannel(actions ...rule.Action) *rule.Channel {
	return &rule.Channel{
		ID: "memes",
		RuleSets: []*rule.RuleSet{{
			ID:      "no-links",
			Target:  rule.TargetAll,
			Rule:    rule.NewCondition(&rule.LinksArgs{MaxLinks: 0}, false),
			Actions: actions,
		}},
	}
}

func TestProcessCastLinks(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	platform := eng.Platform.(*MockPlatform)
	ch := linksChannel(rule.Action{Type: rule.ActionHideQuietly})

	res, err := eng.ProcessCast(ctx, ch, CastFixture("0xaaa", "check this out http://x.com", 1))
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	assert.Contains(res.Match.Reason, "Too many links")
	assert.Equal(modlog.OutcomeActioned, res.Outcome)
	assert.True(res.Recorded)
	assert.Len(platform.CallsFor(rule.ActionHideQuietly), 1)
	assert.Equal(1, platform.CallCount())

	entries, err := eng.Log.List(ctx, "memes", 10)
	assert.NoError(err)
	require.Len(t, entries, 1)
	assert.Equal("0xaaa", entries[0].CastHash)
	assert.Equal("hideQuietly", entries[0].Actions)
	assert.Equal("no-links", entries[0].RuleSetID)

	res, err = eng.ProcessCast(ctx, ch, CastFixture("0xbbb", "no links here", 1))
	require.NoError(t, err)
	assert.Nil(res.Match)
	assert.False(res.Recorded)
	assert.Equal(1, platform.CallCount())

	entries, err = eng.Log.List(ctx, "memes", 10)
	assert.NoError(err)
	assert.Len(entries, 1)
}

func TestProcessCastIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	platform := eng.Platform.(*MockPlatform)
	ch := linksChannel(rule.Action{Type: rule.ActionMute}, rule.NewCooldown(2))
	cast := CastFixture("0xaaa", "http://x.com", 1)

	res, err := eng.ProcessCast(ctx, ch, cast)
	require.NoError(t, err)
	assert.True(res.Recorded)
	assert.Equal(2, platform.CallCount())
	assert.Equal(2*time.Hour, platform.CallsFor(rule.ActionCooldown)[0].Duration)

	res, err = eng.ProcessCast(ctx, ch, cast)
	require.NoError(t, err)
	assert.True(res.AlreadyProcessed)
	assert.Nil(res.Match)
	assert.Equal(2, platform.CallCount())
}

func TestProcessCastActionFailures(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	platform := eng.Platform.(*MockPlatform)
	platform.Fail[rule.ActionMute] = errors.New("rate limited")
	ch := linksChannel(rule.Action{Type: rule.ActionMute}, rule.Action{Type: rule.ActionHideQuietly})

	// a failed action doesn't stop the next one
	res, err := eng.ProcessCast(ctx, ch, CastFixture("0x1", "http://x.com", 1))
	require.NoError(t, err)
	require.Len(t, res.Actions, 2)
	assert.Equal(ActionFailed, res.Actions[0].Status)
	assert.Error(res.Actions[0].Err)
	assert.Equal(ActionDone, res.Actions[1].Status)
	assert.Equal(modlog.OutcomePartial, res.Outcome)
	assert.True(res.Recorded)

	// when everything fails the cast is left for a later retry
	platform.Fail[rule.ActionHideQuietly] = errors.New("rate limited")
	res, err = eng.ProcessCast(ctx, ch, CastFixture("0x2", "http://x.com", 1))
	require.NoError(t, err)
	assert.NotNil(res.Match)
	assert.False(res.Recorded)
	done, err := eng.Log.HasProcessed(ctx, "memes", "0x2")
	assert.NoError(err)
	assert.False(done)
}

func TestProcessCastNoopActions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	platform := eng.Platform.(*MockPlatform)
	ch := linksChannel(rule.Action{Type: rule.ActionBypass}, rule.Action{Type: rule.ActionUnhide})

	res, err := eng.ProcessCast(ctx, ch, CastFixture("0x1", "http://x.com", 1))
	require.NoError(t, err)
	assert.Equal(modlog.OutcomeBypassed, res.Outcome)
	assert.True(res.Recorded)
	assert.Equal(0, platform.CallCount())
}

func TestDispatchDedupes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	platform := eng.Platform.(*MockPlatform)

	results := eng.Dispatch(ctx, "memes", CastFixture("0x1", "", 1), []rule.Action{
		{Type: rule.ActionBan},
		rule.NewCooldown(1),
		{Type: rule.ActionBan},
		rule.NewCooldown(5),
	})
	require.Len(t, results, 2)
	assert.Equal(rule.ActionBan, results[0].Type)
	assert.Equal(rule.ActionCooldown, results[1].Type)
	assert.Equal(2, platform.CallCount())
	assert.Equal(time.Hour, platform.CallsFor(rule.ActionCooldown)[0].Duration)
}

func TestProcessCastBanThreshold(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	platform := eng.Platform.(*MockPlatform)
	threshold := 3
	ch := linksChannel(rule.Action{Type: rule.ActionHideQuietly})
	ch.BanThreshold = &threshold

	for i, hash := range []string{"0x1", "0x2", "0x3", "0x4"} {
		_, err := eng.ProcessCast(ctx, ch, CastFixture(hash, "http://x.com", 42))
		require.NoError(t, err)
		bans := len(platform.CallsFor(rule.ActionBan))
		if i < 2 {
			assert.Equal(0, bans, hash)
		} else {
			assert.Equal(i-1, bans, hash)
		}
	}

	// other authors have their own count
	_, err := eng.ProcessCast(ctx, ch, CastFixture("0x5", "http://x.com", 43))
	require.NoError(t, err)
	assert.Len(platform.CallsFor(rule.ActionBan), 2)

	entries, err := eng.Log.List(ctx, "memes", 10)
	require.NoError(t, err)
	assert.Equal("hideQuietly", entries[0].Actions)
	assert.Equal("hideQuietly,ban", entries[1].Actions)
}

func TestBanThresholdCircuitBreaker(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	platform := eng.Platform.(*MockPlatform)
	threshold := 1
	ch := linksChannel(rule.Action{Type: rule.ActionHideQuietly})
	ch.BanThreshold = &threshold

	for i := 0; i < QuotaThresholdBanDay; i++ {
		_, err := eng.Counters.Increment(ctx, counterThresholdBans, "memes")
		require.NoError(t, err)
	}
	res, err := eng.ProcessCast(ctx, ch, CastFixture("0x1", "http://x.com", 7))
	require.NoError(t, err)
	assert.Len(res.Actions, 1)
	assert.Empty(platform.CallsFor(rule.ActionBan))
}

func TestRetriedCastCountsOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	platform := eng.Platform.(*MockPlatform)
	platform.Fail[rule.ActionHideQuietly] = errors.New("rate limited")
	threshold := 3
	ch := linksChannel(rule.Action{Type: rule.ActionHideQuietly})
	ch.BanThreshold = &threshold

	// every sweep retries the unrecorded cast, but it is one violation
	for i := 0; i < 3; i++ {
		res, err := eng.ProcessCast(ctx, ch, CastFixture("0xsame", "http://x.com", 42))
		require.NoError(t, err)
		assert.False(res.Recorded)
		assert.Len(res.Actions, 1)
	}
	assert.Len(platform.CallsFor(rule.ActionHideQuietly), 3)
	assert.Empty(platform.CallsFor(rule.ActionBan))
	count, err := eng.Counters.GetCount(ctx, counterViolations, "memes/42", countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, count)

	// two more distinct violations reach the threshold
	delete(platform.Fail, rule.ActionHideQuietly)
	for _, hash := range []string{"0x2", "0x3"} {
		_, err := eng.ProcessCast(ctx, ch, CastFixture(hash, "http://x.com", 42))
		require.NoError(t, err)
	}
	assert.Len(platform.CallsFor(rule.ActionBan), 1)
	assert.Equal("0x3", platform.CallsFor(rule.ActionBan)[0].CastHash)
}

func TestProcessCastReadOnly(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.ReadOnly = true
	platform := eng.Platform.(*MockPlatform)
	threshold := 1
	ch := linksChannel(rule.Action{Type: rule.ActionWarnAndHide})
	ch.BanThreshold = &threshold

	res, err := eng.ProcessCast(ctx, ch, CastFixture("0x1", "http://x.com", 7))
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	require.Len(t, res.Actions, 2)
	assert.Equal(ActionSkipped, res.Actions[0].Status)
	assert.Equal(rule.ActionBan, res.Actions[1].Type)
	assert.False(res.Recorded)
	assert.Equal(0, platform.CallCount())

	done, err := eng.Log.HasProcessed(ctx, "memes", "0x1")
	assert.NoError(err)
	assert.False(done)
}

type panicPlatform struct {
	*MockPlatform
}

func (panicPlatform) HideQuietly(ctx context.Context, channelID string, cast *Cast) error {
	panic("boom")
}

func TestProcessCastRecoversPanics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.Platform = panicPlatform{NewMockPlatform()}

	_, err := eng.ProcessCast(ctx, linksChannel(rule.Action{Type: rule.ActionHideQuietly}), CastFixture("0x1", "http://x.com", 1))
	assert.Error(err)
	assert.Contains(err.Error(), "boom")
}
