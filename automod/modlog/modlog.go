// Append-only record of moderation decisions, keyed uniquely by (channel, cast).
//
// The log doubles as the only idempotence mechanism for cast processing: a cast with an entry is never evaluated
// or actioned again for that channel.
package modlog

import (
	"context"
	"time"
)

type Outcome string

const (
	// every action was carried out
	OutcomeActioned Outcome = "actioned"
	// at least one action failed, and at least one succeeded
	OutcomePartial Outcome = "partial"
	// the rule set fired but only carried no-op actions, like bypass
	OutcomeBypassed Outcome = "bypassed"
)

type Entry struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	ChannelID string    `gorm:"not null;uniqueIndex:idx_modlog_channel_cast" json:"channelId"`
	CastHash  string    `gorm:"not null;uniqueIndex:idx_modlog_channel_cast" json:"castHash"`
	Outcome   Outcome   `gorm:"not null" json:"outcome"`
	RuleSetID string    `json:"ruleSetId,omitempty"`
	// comma separated action types, in dispatch order
	Actions          string `json:"actions"`
	Reason           string `json:"reason"`
	AffectedFID      int64  `gorm:"index" json:"affectedFid"`
	AffectedUsername string `json:"affectedUsername"`
}

func (Entry) TableName() string {
	return "moderation_logs"
}

type Log interface {
	HasProcessed(ctx context.Context, channelID, castHash string) (bool, error)
	// Processed reports which of the given hashes already have entries, for batch filtering of a page of casts.
	Processed(ctx context.Context, channelID string, castHashes []string) (map[string]bool, error)
	// Record appends an entry. Recording a (channel, cast) pair which already has an entry is a no-op.
	Record(ctx context.Context, e *Entry) error
	// List returns up to limit entries for the channel, newest first.
	List(ctx context.Context, channelID string, limit int) ([]*Entry, error)
}

const DefaultListLimit = 50
