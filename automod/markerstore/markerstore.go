// Short-lived, time-windowed markers keyed by string, used as an advisory "already running" signal for channel sweeps.
//
// A marker is not a lock: it is never released early, and one left behind by a crashed process keeps reporting
// "active" until its window passes.
package markerstore

import (
	"context"
	"time"
)

const DefaultWindow = 15 * time.Minute

type MarkerStore interface {
	// TryMark records a marker started at now, unless a live one already exists for key. Returns true if this call set
	// the marker.
	TryMark(ctx context.Context, key string, now time.Time) (bool, error)
	// Get returns when the live marker for key was set, and false if there is none.
	Get(ctx context.Context, key string) (time.Time, bool, error)
}

// SweepKey is the marker key guarding sweeps of one channel.
func SweepKey(channelID string) string {
	return "sweep:" + channelID
}
