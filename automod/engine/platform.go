package engine

import (
	"context"
	"time"
)

// Platform carries out moderation actions upstream. Every call is independent and may fail on its own.
type Platform interface {
	HideQuietly(ctx context.Context, channelID string, cast *Cast) error
	WarnAndHide(ctx context.Context, channelID string, cast *Cast) error
	Mute(ctx context.Context, channelID string, cast *Cast) error
	Ban(ctx context.Context, channelID string, cast *Cast) error
	Cooldown(ctx context.Context, channelID string, cast *Cast, duration time.Duration) error
}

type CohostLookup interface {
	IsCohost(ctx context.Context, fid int64, channelID string) (bool, error)
}
