package engine

import (
	"context"
	"fmt"

	"github.com/castmod/castmod/automod/rule"
)

type ActionStatus string

const (
	ActionDone    ActionStatus = "done"
	ActionFailed  ActionStatus = "failed"
	ActionNoop    ActionStatus = "noop"
	ActionSkipped ActionStatus = "skipped"
)

type ActionResult struct {
	Type   rule.ActionType `json:"type"`
	Status ActionStatus    `json:"status"`
	Err    error           `json:"-"`
}

// dedupeActions keeps the first action of each type, in order.
func dedupeActions(actions []rule.Action) []rule.Action {
	seen := make(map[rule.ActionType]bool, len(actions))
	out := make([]rule.Action, 0, len(actions))
	for _, a := range actions {
		if seen[a.Type] {
			continue
		}
		seen[a.Type] = true
		out = append(out, a)
	}
	return out
}

// Dispatch carries out actions in order against the platform. A failed action is logged and counted, and does not
// stop the ones after it. Bypass and the lifecycle markers are no-ops. In read-only mode nothing is sent.
func (eng *Engine) Dispatch(ctx context.Context, channelID string, cast *Cast, actions []rule.Action) []ActionResult {
	logger := eng.logger().With("channel", channelID, "cast", cast.Hash, "fid", cast.Author.FID)
	actions = dedupeActions(actions)
	results := make([]ActionResult, 0, len(actions))
	for _, a := range actions {
		res := ActionResult{Type: a.Type}
		if isNoop(a.Type) {
			res.Status = ActionNoop
			results = append(results, res)
			continue
		}
		if eng.ReadOnly {
			logger.Info("skipping action in read-only mode", "action", a.Type)
			res.Status = ActionSkipped
			results = append(results, res)
			continue
		}
		if err := eng.dispatchOne(ctx, channelID, cast, a); err != nil {
			actionErrorCount.WithLabelValues(string(a.Type)).Inc()
			logger.Error("moderation action failed", "action", a.Type, "err", err)
			res.Status = ActionFailed
			res.Err = err
		} else {
			actionCount.WithLabelValues(string(a.Type)).Inc()
			logger.Info("moderation action", "action", a.Type)
			res.Status = ActionDone
		}
		results = append(results, res)
	}
	return results
}

func isNoop(t rule.ActionType) bool {
	switch t {
	case rule.ActionBypass, rule.ActionCooldownEnded, rule.ActionUnhide, rule.ActionUnmuted:
		return true
	}
	return false
}

func (eng *Engine) dispatchOne(ctx context.Context, channelID string, cast *Cast, a rule.Action) error {
	if eng.Platform == nil {
		return fmt.Errorf("no moderation platform configured")
	}
	switch a.Type {
	case rule.ActionHideQuietly:
		return eng.Platform.HideQuietly(ctx, channelID, cast)
	case rule.ActionWarnAndHide:
		return eng.Platform.WarnAndHide(ctx, channelID, cast)
	case rule.ActionMute:
		return eng.Platform.Mute(ctx, channelID, cast)
	case rule.ActionBan:
		return eng.Platform.Ban(ctx, channelID, cast)
	case rule.ActionCooldown:
		return eng.Platform.Cooldown(ctx, channelID, cast, a.Duration)
	}
	return fmt.Errorf("unsupported action type %q", a.Type)
}
