package channelstore

import (
	"context"
	"errors"
	"testing"

	"github.com/castmod/castmod/automod/rule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testGormStore(t *testing.T) *GormStore {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := NewGormStore(db)
	require.NoError(t, s.Migrate())
	return s
}

func testStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"mem":  NewMemStore(),
		"gorm": testGormStore(t),
	}
}

func linksChannel(id string, maxLinks int) *rule.Channel {
	return &rule.Channel{
		ID: id,
		RuleSets: []*rule.RuleSet{{
			ID:      "links",
			Target:  rule.TargetRoot,
			Rule:    rule.NewCondition(&rule.LinksArgs{MaxLinks: maxLinks}, false),
			Actions: []rule.Action{{Type: rule.ActionHideQuietly}, rule.NewCooldown(24)},
		}},
	}
}

func TestStoreBasics(t *testing.T) {
	ctx := context.Background()

	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			_, err := s.Get(ctx, "memes")
			assert.True(errors.Is(err, ErrNotFound))

			require.NoError(t, s.Put(ctx, linksChannel("memes", 0)))
			require.NoError(t, s.Put(ctx, linksChannel("degen", 1)))

			ch, err := s.Get(ctx, "memes")
			require.NoError(t, err)
			require.Len(t, ch.RuleSets, 1)
			rs := ch.RuleSets[0]
			assert.Equal(rule.TargetRoot, rs.Target)
			assert.Equal(rule.NameContainsLinks, rs.Rule.Name)
			assert.Equal(0, rs.Rule.Args.(*rule.LinksArgs).MaxLinks)
			assert.Equal(rule.ActionCooldown, rs.Actions[1].Type)
			assert.Equal(24.0, rs.Actions[1].DurationHours())

			// replace
			require.NoError(t, s.Put(ctx, linksChannel("memes", 5)))
			ch, err = s.Get(ctx, "memes")
			require.NoError(t, err)
			assert.Equal(5, ch.RuleSets[0].Rule.Args.(*rule.LinksArgs).MaxLinks)

			ids, err := s.List(ctx)
			assert.NoError(err)
			assert.Equal([]string{"degen", "memes"}, ids)
		})
	}
}

func TestStoreRejectsInvalid(t *testing.T) {
	ctx := context.Background()

	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			bad := linksChannel("memes", 0)
			bad.RuleSets[0].Actions = nil
			err := s.Put(ctx, bad)
			var verrs rule.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal("ruleSets.0.actions", verrs[0].Path)

			// nothing was stored
			_, err = s.Get(ctx, "memes")
			assert.True(errors.Is(err, ErrNotFound))
		})
	}
}
