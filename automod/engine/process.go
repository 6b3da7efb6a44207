package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/castmod/castmod/automod/countstore"
	"github.com/castmod/castmod/automod/modlog"
	"github.com/castmod/castmod/automod/rule"
)

// Result describes what ProcessCast did with one cast.
type Result struct {
	// the cast already had a moderation log entry, and was left alone
	AlreadyProcessed bool
	Match            *Match
	Actions          []ActionResult
	Outcome          modlog.Outcome
	Recorded         bool
}

// ProcessCast runs one cast through the channel's rules: skip it if the moderation log already has it, evaluate,
// dispatch the firing rule set's actions, then record the decision.
//
// Casts that fire no rule set are not recorded. Neither are casts whose every action failed, so that a later sweep
// tries them again.
func (eng *Engine) ProcessCast(ctx context.Context, ch *rule.Channel, cast *Cast) (res *Result, err error) {
	logger := eng.logger().With("channel", ch.ID, "cast", cast.Hash)

	// similar to an HTTP server, we want to recover any panics from rule execution
	defer func() {
		if r := recover(); r != nil {
			logger.Error("cast processing exception", "err", r)
			err = fmt.Errorf("cast processing panic: %v", r)
		}
	}()

	start := time.Now()
	defer func() {
		castProcessDuration.Observe(time.Since(start).Seconds())
	}()

	processed, err := eng.Log.HasProcessed(ctx, ch.ID, cast.Hash)
	if err != nil {
		return nil, err
	}
	if processed {
		logger.Debug("cast already processed")
		castProcessCount.WithLabelValues("duplicate").Inc()
		return &Result{AlreadyProcessed: true}, nil
	}

	match, evalErr := eng.EvaluateCast(ctx, ch, cast)
	if evalErr != nil {
		logger.Warn("some rule sets failed to evaluate", "err", evalErr)
	}
	res = &Result{Match: match}
	if match == nil {
		castProcessCount.WithLabelValues("clean").Inc()
		return res, nil
	}
	logger.Info("rule set fired", "ruleSet", match.Index, "reason", match.Reason, "fid", cast.Author.FID)

	actions := match.RuleSet.Actions
	if hasEffect(actions) {
		actions = eng.applyBanThreshold(ctx, ch, cast, actions)
	}
	res.Actions = eng.Dispatch(ctx, ch.ID, cast, actions)
	res.Outcome = outcome(res.Actions)
	castProcessCount.WithLabelValues(string(res.Outcome)).Inc()

	if res.Outcome == "" {
		logger.Warn("every moderation action failed, leaving cast unrecorded")
		return res, nil
	}
	if eng.ReadOnly {
		return res, nil
	}

	types := make([]string, len(res.Actions))
	for i, a := range res.Actions {
		types[i] = string(a.Type)
	}
	entry := &modlog.Entry{
		ChannelID:        ch.ID,
		CastHash:         cast.Hash,
		Outcome:          res.Outcome,
		RuleSetID:        match.RuleSet.ID,
		Actions:          strings.Join(types, ","),
		Reason:           match.Reason,
		AffectedFID:      cast.Author.FID,
		AffectedUsername: cast.Author.Username,
	}
	if err := eng.Log.Record(ctx, entry); err != nil {
		return res, err
	}
	res.Recorded = true
	return res, nil
}

// hasEffect is false for rule sets which only carry no-op actions
func hasEffect(actions []rule.Action) bool {
	for _, a := range actions {
		if !isNoop(a.Type) {
			return true
		}
	}
	return false
}

// outcome is empty when every action with an effect failed.
func outcome(results []ActionResult) modlog.Outcome {
	effective, failed := 0, 0
	for _, r := range results {
		switch r.Status {
		case ActionNoop:
		case ActionFailed:
			effective++
			failed++
		default:
			effective++
		}
	}
	switch {
	case effective == 0:
		return modlog.OutcomeBypassed
	case failed == effective:
		return ""
	case failed > 0:
		return modlog.OutcomePartial
	}
	return modlog.OutcomeActioned
}

// countViolation returns the author's violation count including this cast, and whether this cast is counted for the
// first time. A cast left unrecorded after its actions failed comes back on the next sweep, and only counts once.
func (eng *Engine) countViolation(ctx context.Context, channelID, castHash, authorKey string) (int, bool, error) {
	castKey := channelID + "/" + castHash
	if eng.ReadOnly {
		seen, err := eng.Counters.GetCount(ctx, counterCountedCasts, castKey, countstore.PeriodTotal)
		if err != nil {
			return 0, false, err
		}
		count, err := eng.Counters.GetCount(ctx, counterViolations, authorKey, countstore.PeriodTotal)
		return count + 1, seen == 0, err
	}

	seen, err := eng.Counters.Increment(ctx, counterCountedCasts, castKey)
	if err != nil {
		return 0, false, err
	}
	if seen > 1 {
		return 0, false, nil
	}
	count, err := eng.Counters.Increment(ctx, counterViolations, authorKey)
	return count, true, err
}

// applyBanThreshold counts the violation against the author, and adds a ban when the channel's threshold is reached.
// Counter failures are logged and never block the rule set's own actions.
func (eng *Engine) applyBanThreshold(ctx context.Context, ch *rule.Channel, cast *Cast, actions []rule.Action) []rule.Action {
	if ch.BanThreshold == nil || eng.Counters == nil {
		return actions
	}
	logger := eng.logger().With("channel", ch.ID, "cast", cast.Hash, "fid", cast.Author.FID)
	key := fmt.Sprintf("%s/%d", ch.ID, cast.Author.FID)

	count, fresh, err := eng.countViolation(ctx, ch.ID, cast.Hash, key)
	if err != nil {
		logger.Error("failed to count violation", "err", err)
		return actions
	}
	// a retried cast already had its chance to reach the threshold
	if !fresh {
		logger.Debug("violation already counted for cast")
		return actions
	}
	if count < *ch.BanThreshold {
		return actions
	}
	for _, a := range actions {
		if a.Type == rule.ActionBan {
			return actions
		}
	}

	bans, err := eng.Counters.GetCount(ctx, counterThresholdBans, ch.ID, countstore.PeriodDay)
	if err != nil {
		logger.Error("failed to read threshold ban quota", "err", err)
		return actions
	}
	if bans >= QuotaThresholdBanDay {
		logger.Warn("CIRCUIT BREAKER: threshold bans", "bans", bans)
		return actions
	}
	if !eng.ReadOnly {
		if _, err := eng.Counters.Increment(ctx, counterThresholdBans, ch.ID); err != nil {
			logger.Error("failed to count threshold ban", "err", err)
		}
	}
	logger.Info("ban threshold reached", "violations", count, "threshold", *ch.BanThreshold)
	out := make([]rule.Action, 0, len(actions)+1)
	out = append(out, actions...)
	return append(out, rule.Action{Type: rule.ActionBan})
}
