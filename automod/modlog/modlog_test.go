package modlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testGormLog(t *testing.T) *GormLog {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// a single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	l := NewGormLog(db)
	require.NoError(t, l.Migrate())
	return l
}

func testLogs(t *testing.T) map[string]Log {
	return map[string]Log{
		"mem":  NewMemLog(),
		"gorm": testGormLog(t),
	}
}

func TestLogIdempotence(t *testing.T) {
	ctx := context.Background()

	for name, l := range testLogs(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			ok, err := l.HasProcessed(ctx, "memes", "0xabc")
			assert.NoError(err)
			assert.False(ok)

			e := &Entry{
				ChannelID:   "memes",
				CastHash:    "0xabc",
				Outcome:     OutcomeActioned,
				Actions:     "hideQuietly",
				Reason:      "Too many links. Max: 0",
				AffectedFID: 42,
			}
			assert.NoError(l.Record(ctx, e))

			ok, err = l.HasProcessed(ctx, "memes", "0xabc")
			assert.NoError(err)
			assert.True(ok)

			// same cast in another channel is a separate key
			ok, err = l.HasProcessed(ctx, "dogs", "0xabc")
			assert.NoError(err)
			assert.False(ok)

			// a second record is a no-op, and keeps the first entry
			dupe := *e
			dupe.Reason = "something else"
			assert.NoError(l.Record(ctx, &dupe))

			entries, err := l.List(ctx, "memes", 10)
			assert.NoError(err)
			require.Len(t, entries, 1)
			assert.Equal("Too many links. Max: 0", entries[0].Reason)
			assert.Equal(int64(42), entries[0].AffectedFID)
			assert.False(entries[0].CreatedAt.IsZero())
		})
	}
}

func TestLogProcessedBatch(t *testing.T) {
	ctx := context.Background()

	for name, l := range testLogs(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			for _, h := range []string{"0x1", "0x3"} {
				assert.NoError(l.Record(ctx, &Entry{ChannelID: "memes", CastHash: h, Outcome: OutcomeActioned}))
			}
			assert.NoError(l.Record(ctx, &Entry{ChannelID: "dogs", CastHash: "0x2", Outcome: OutcomeActioned}))

			done, err := l.Processed(ctx, "memes", []string{"0x1", "0x2", "0x3", "0x4"})
			assert.NoError(err)
			assert.Equal(map[string]bool{"0x1": true, "0x3": true}, done)

			done, err = l.Processed(ctx, "memes", nil)
			assert.NoError(err)
			assert.Empty(done)
		})
	}
}

func TestLogListOrder(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, l := range testLogs(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			for i := 0; i < 5; i++ {
				assert.NoError(l.Record(ctx, &Entry{
					ChannelID: "memes",
					CastHash:  fmt.Sprintf("0x%d", i),
					Outcome:   OutcomeActioned,
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				}))
			}

			entries, err := l.List(ctx, "memes", 3)
			assert.NoError(err)
			require.Len(t, entries, 3)
			assert.Equal("0x4", entries[0].CastHash)
			assert.Equal("0x3", entries[1].CastHash)
			assert.Equal("0x2", entries[2].CastHash)

			entries, err = l.List(ctx, "nobody", 0)
			assert.NoError(err)
			assert.Empty(entries)
		})
	}
}
