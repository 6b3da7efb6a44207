package util

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// ParseTimestamp parses cast and API timestamps. Neynar and Warpcast mostly send RFC 3339 with milliseconds, but
// older casts and some endpoints carry other layouts, including bare unix milliseconds.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := dateparse.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q as timestamp: %w", s, err)
	}
	return t, nil
}
