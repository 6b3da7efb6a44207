package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/castmod/castmod/automod/rule"
)

// Match is the first rule set of a channel which fired for a cast.
type Match struct {
	RuleSet *rule.RuleSet
	// position of RuleSet in the channel configuration
	Index  int
	Reason string
}

// EvaluateRule returns a violation reason if the rule tree fires for the cast, or an empty string.
//
// An AND node fires only when every child fires, and its reason joins the children's reasons. An OR node fires with
// the reason of its first firing child. Both stop at the first child that decides the outcome.
func (eng *Engine) EvaluateRule(ctx context.Context, channelID string, r *rule.Rule, cast *Cast) (string, error) {
	c := &checker{
		ctx:       ctx,
		eng:       eng,
		channelID: channelID,
		cast:      cast,
	}
	return c.evaluate(r)
}

func (c *checker) evaluate(r *rule.Rule) (string, error) {
	if r == nil {
		return "", fmt.Errorf("nil rule")
	}
	switch r.Kind {
	case rule.KindCondition:
		// "and" and "or" used as plain conditions have no args and never fire
		if r.Args == nil {
			return "", nil
		}
		return r.Args.Accept(c, r.Invert)
	case rule.KindLogical:
		switch r.Operation {
		case rule.OpAnd:
			if len(r.Conditions) == 0 {
				return "", nil
			}
			reasons := make([]string, 0, len(r.Conditions))
			for _, child := range r.Conditions {
				reason, err := c.evaluate(child)
				if err != nil || reason == "" {
					return "", err
				}
				reasons = append(reasons, reason)
			}
			return strings.Join(reasons, ", "), nil
		case rule.OpOr:
			for _, child := range r.Conditions {
				reason, err := c.evaluate(child)
				if err != nil {
					return "", err
				}
				if reason != "" {
					return reason, nil
				}
			}
			return "", nil
		default:
			return "", fmt.Errorf("unsupported operation %q", r.Operation)
		}
	default:
		return "", fmt.Errorf("unsupported rule type %q", r.Kind)
	}
}

// EvaluateCast checks the channel's rule sets in order and returns the first which fires, or nil. Rule sets whose
// target excludes the cast are skipped.
//
// A rule set which fails to evaluate (including by panicking) is treated as not firing, and evaluation moves on to
// the next one. Those failures are returned joined together, alongside any match.
func (eng *Engine) EvaluateCast(ctx context.Context, ch *rule.Channel, cast *Cast) (*Match, error) {
	var errs []error
	for i, rs := range ch.RuleSets {
		if !rs.Target.Matches(cast.IsReply()) {
			continue
		}
		reason, err := eng.evaluateRuleSet(ctx, ch.ID, rs, cast)
		if err != nil {
			ruleErrorCount.WithLabelValues(ch.ID).Inc()
			eng.logger().Warn("rule set evaluation failed", "channel", ch.ID, "cast", cast.Hash, "ruleSet", i, "err", err)
			errs = append(errs, fmt.Errorf("rule set %d: %w", i, err))
			continue
		}
		if reason != "" {
			ruleMatchCount.WithLabelValues(ch.ID).Inc()
			return &Match{RuleSet: rs, Index: i, Reason: reason}, errors.Join(errs...)
		}
	}
	return nil, errors.Join(errs...)
}

func (eng *Engine) evaluateRuleSet(ctx context.Context, channelID string, rs *rule.RuleSet, cast *Cast) (reason string, err error) {
	// malformed cast or author data shouldn't take down the caller
	defer func() {
		if r := recover(); r != nil {
			reason = ""
			err = fmt.Errorf("rule evaluation panic: %v", r)
		}
	}()
	ruleEvalCount.WithLabelValues(channelID).Inc()
	return eng.EvaluateRule(ctx, channelID, rs.Rule, cast)
}
