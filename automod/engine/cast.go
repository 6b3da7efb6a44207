package engine

import (
	"time"

	"github.com/castmod/castmod/util"
)

// Cast is a single post in a channel, in the shape the Neynar API returns it.
type Cast struct {
	Hash       string  `json:"hash"`
	ParentHash *string `json:"parent_hash"`
	ParentURL  string  `json:"parent_url,omitempty"`
	Text       string  `json:"text"`
	Timestamp  string  `json:"timestamp,omitempty"`
	Author     Author  `json:"author"`
}

// IsReply is true for casts with a parent cast; top-level channel casts only carry a parent URL.
func (c *Cast) IsReply() bool {
	return c.ParentHash != nil && *c.ParentHash != ""
}

type Author struct {
	FID           int64   `json:"fid"`
	Username      string  `json:"username"`
	DisplayName   string  `json:"display_name"`
	Profile       Profile `json:"profile"`
	FollowerCount int64   `json:"follower_count"`
	// "active" or "inactive"
	ActiveStatus string `json:"active_status"`
}

type Profile struct {
	Bio Bio `json:"bio"`
}

type Bio struct {
	Text string `json:"text"`
}

const ActiveStatusActive = "active"

// CreatedAt parses the cast's timestamp.
func (c *Cast) CreatedAt() (time.Time, error) {
	return util.ParseTimestamp(c.Timestamp)
}
