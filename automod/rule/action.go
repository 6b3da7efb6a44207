package rule

import (
	"time"
)

type ActionType string

const (
	ActionBypass      ActionType = "bypass"
	ActionHideQuietly ActionType = "hideQuietly"
	ActionBan         ActionType = "ban"
	ActionWarnAndHide ActionType = "warnAndHide"
	ActionMute        ActionType = "mute"
	ActionCooldown    ActionType = "cooldown"

	// lifecycle markers, recorded by the expiry and manual-review paths; never part of a RuleSet
	ActionCooldownEnded ActionType = "cooldownEnded"
	ActionUnhide        ActionType = "unhide"
	ActionUnmuted       ActionType = "unmuted"
)

// ActionTypes lists every action type, including lifecycle markers.
var ActionTypes = []ActionType{
	ActionBypass,
	ActionHideQuietly,
	ActionBan,
	ActionMute,
	ActionWarnAndHide,
	ActionCooldown,
	ActionCooldownEnded,
	ActionUnhide,
	ActionUnmuted,
}

// Configurable reports whether a channel owner may attach this action type to a RuleSet.
func (t ActionType) Configurable() bool {
	switch t {
	case ActionBypass, ActionHideQuietly, ActionBan, ActionWarnAndHide, ActionMute, ActionCooldown:
		return true
	}
	return false
}

// Action is immutable once attached to a RuleSet. Duration is only meaningful for cooldowns.
type Action struct {
	Type     ActionType
	Duration time.Duration
}

func NewCooldown(hours float64) Action {
	return Action{
		Type:     ActionCooldown,
		Duration: time.Duration(hours * float64(time.Hour)),
	}
}

// DurationHours is the cooldown duration as configured by channel owners.
func (a Action) DurationHours() float64 {
	return a.Duration.Hours()
}

type Target string

const (
	TargetAll   Target = "all"
	TargetRoot  Target = "root"
	TargetReply Target = "reply"
)

// Matches reports whether a cast with or without a parent is in scope for this target.
func (t Target) Matches(isReply bool) bool {
	switch t {
	case TargetRoot:
		return !isReply
	case TargetReply:
		return isReply
	default:
		return true
	}
}

// RuleSet bundles one rule tree with the ordered actions taken when it fires.
type RuleSet struct {
	ID      string
	Target  Target
	Rule    *Rule
	Actions []Action
}

// Channel is the full moderation configuration of one channel. RuleSets are evaluated in order.
type Channel struct {
	ID string
	// when set, an author reaching this many violations in the channel is banned
	BanThreshold *int
	RuleSets     []*RuleSet
}
