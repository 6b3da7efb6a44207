package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/castmod/castmod/automod/rule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// leaves with known outcomes against CastFixture casts
func firing(text string) *rule.Rule {
	return rule.NewCondition(&rule.ContainsTextArgs{SearchText: text}, true)
}

func silent() *rule.Rule {
	return rule.NewCondition(&rule.NotActiveArgs{}, false)
}

func TestAndRequiresEveryChild(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	cast := CastFixture("0x1", "hello world", 1)

	all := rule.All(firing("a1"), firing("b2"), firing("c3"))
	reason, err := eng.EvaluateRule(ctx, "memes", all, cast)
	assert.NoError(err)
	assert.Equal("Text does not contain the text: a1, Text does not contain the text: b2, Text does not contain the text: c3", reason)

	// dropping any one firing child keeps it firing
	for i := range all.Conditions {
		rest := append([]*rule.Rule{}, all.Conditions[:i]...)
		rest = append(rest, all.Conditions[i+1:]...)
		reason, err := eng.EvaluateRule(ctx, "memes", rule.All(rest...), cast)
		assert.NoError(err)
		assert.NotEmpty(reason)
	}

	// making any one child silent vetoes the whole branch
	for i := range all.Conditions {
		children := append([]*rule.Rule{}, all.Conditions...)
		children[i] = silent()
		reason, err := eng.EvaluateRule(ctx, "memes", rule.All(children...), cast)
		assert.NoError(err)
		assert.Empty(reason)
	}

	// an unvalidated empty AND never fires
	reason, err = eng.EvaluateRule(ctx, "memes", rule.All(), cast)
	assert.NoError(err)
	assert.Empty(reason)
}

func TestOrFirstFiringChild(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	cast := CastFixture("0x1", "hello world", 1)

	reason, err := eng.EvaluateRule(ctx, "memes", rule.Any(silent(), firing("x"), firing("y")), cast)
	assert.NoError(err)
	assert.Equal("Text does not contain the text: x", reason)

	// reordering changes the reason but not whether it fires
	reason, err = eng.EvaluateRule(ctx, "memes", rule.Any(firing("y"), silent(), firing("x")), cast)
	assert.NoError(err)
	assert.Equal("Text does not contain the text: y", reason)

	reason, err = eng.EvaluateRule(ctx, "memes", rule.Any(silent(), silent()), cast)
	assert.NoError(err)
	assert.Empty(reason)

	reason, err = eng.EvaluateRule(ctx, "memes", rule.Any(), cast)
	assert.NoError(err)
	assert.Empty(reason)
}

func TestShortCircuit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	cohosts := eng.Cohosts.(*MockCohosts)
	cast := CastFixture("0x1", "hello world", 1)
	cohostCheck := rule.NewCondition(&rule.CohostArgs{}, true)

	_, err := eng.EvaluateRule(ctx, "memes", rule.Any(firing("x"), cohostCheck), cast)
	assert.NoError(err)
	_, err = eng.EvaluateRule(ctx, "memes", rule.All(silent(), cohostCheck), cast)
	assert.NoError(err)
	assert.Equal(0, cohosts.Lookups)

	_, err = eng.EvaluateRule(ctx, "memes", rule.All(firing("x"), cohostCheck), cast)
	assert.NoError(err)
	assert.Equal(1, cohosts.Lookups)
}

func TestNestedTrees(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	spam := CastFixture("0x1", "free mint at https://scam.xyz", 1)
	spam.Author.FollowerCount = 3
	legit := CastFixture("0x2", "free mint at https://zora.co", 2)
	legit.Author.FollowerCount = 5000

	// new accounts posting links about mints
	tree := rule.All(
		rule.NewCondition(&rule.FollowerCountArgs{Min: int64Ptr(100)}, false),
		rule.Any(
			rule.NewCondition(&rule.ContainsTextArgs{SearchText: "Free Mint"}, false),
			rule.NewCondition(&rule.LinksArgs{}, false),
		),
	)
	require.NoError(t, tree.Validate())

	reason, err := eng.EvaluateRule(ctx, "memes", tree, spam)
	assert.NoError(err)
	assert.Equal("Follower count less than 100, Text contains the text: Free Mint", reason)

	reason, err = eng.EvaluateRule(ctx, "memes", tree, legit)
	assert.NoError(err)
	assert.Empty(reason)
}

func TestEvaluateCastTargets(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	ch := &rule.Channel{
		ID: "memes",
		RuleSets: []*rule.RuleSet{
			{ID: "replies", Target: rule.TargetReply, Rule: firing("x"), Actions: []rule.Action{{Type: rule.ActionHideQuietly}}},
			{ID: "roots", Target: rule.TargetRoot, Rule: firing("y"), Actions: []rule.Action{{Type: rule.ActionMute}}},
			{ID: "all", Target: rule.TargetAll, Rule: firing("z"), Actions: []rule.Action{{Type: rule.ActionBan}}},
		},
	}

	root := CastFixture("0x1", "gm", 1)
	m, err := eng.EvaluateCast(ctx, ch, root)
	assert.NoError(err)
	require.NotNil(t, m)
	assert.Equal("roots", m.RuleSet.ID)
	assert.Equal(1, m.Index)
	assert.Equal("Text does not contain the text: y", m.Reason)

	parent := "0xparent"
	reply := CastFixture("0x2", "gm", 1)
	reply.ParentHash = &parent
	m, err = eng.EvaluateCast(ctx, ch, reply)
	assert.NoError(err)
	require.NotNil(t, m)
	assert.Equal("replies", m.RuleSet.ID)

	clean := &rule.Channel{ID: "memes", RuleSets: []*rule.RuleSet{
		{Target: rule.TargetAll, Rule: silent(), Actions: []rule.Action{{Type: rule.ActionBan}}},
	}}
	m, err = eng.EvaluateCast(ctx, clean, root)
	assert.NoError(err)
	assert.Nil(m)
}

func TestEvaluateCastIsolatesErrors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.Cohosts.(*MockCohosts).Err = errors.New("hub unavailable")

	ch := &rule.Channel{
		ID: "memes",
		RuleSets: []*rule.RuleSet{
			{ID: "cohosts", Target: rule.TargetAll, Rule: rule.NewCondition(&rule.CohostArgs{}, true), Actions: []rule.Action{{Type: rule.ActionHideQuietly}}},
			// nil pointer args panic during evaluation
			{ID: "broken", Target: rule.TargetAll, Rule: rule.NewCondition((*rule.LinksArgs)(nil), false), Actions: []rule.Action{{Type: rule.ActionHideQuietly}}},
			{ID: "links", Target: rule.TargetAll, Rule: rule.NewCondition(&rule.LinksArgs{}, false), Actions: []rule.Action{{Type: rule.ActionMute}}},
		},
	}

	m, err := eng.EvaluateCast(ctx, ch, CastFixture("0x1", "see http://x.com", 1))
	require.NotNil(t, m)
	assert.Equal("links", m.RuleSet.ID)
	assert.Error(err)
	assert.Contains(err.Error(), "hub unavailable")
	assert.Contains(err.Error(), "panic")

	m, err = eng.EvaluateCast(ctx, ch, CastFixture("0x2", "no links", 1))
	assert.Nil(m)
	assert.Error(err)
}
