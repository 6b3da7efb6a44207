package rule

import (
	"bytes"
	"encoding/json"
)

// wire formats, matching the configuration documents channel owners save

type ruleJSON struct {
	Name       Name              `json:"name"`
	Type       Kind              `json:"type"`
	Args       json.RawMessage   `json:"args,omitempty"`
	Operation  Operation         `json:"operation,omitempty"`
	Invert     bool              `json:"invert,omitempty"`
	Conditions []json.RawMessage `json:"conditions,omitempty"`
}

type actionArgsJSON struct {
	// hours
	Duration *float64 `json:"duration,omitempty"`
}

type actionJSON struct {
	Type ActionType      `json:"type"`
	Args *actionArgsJSON `json:"args,omitempty"`
}

type ruleSetJSON struct {
	ID      string            `json:"id,omitempty"`
	Target  Target            `json:"target,omitempty"`
	Rule    json.RawMessage   `json:"rule"`
	Actions []json.RawMessage `json:"actions"`
}

type channelJSON struct {
	ID           string            `json:"id"`
	BanThreshold *int              `json:"banThreshold"`
	RuleSets     []json.RawMessage `json:"ruleSets"`
}

// ParseRule decodes and validates a single rule tree.
func ParseRule(data []byte) (*Rule, error) {
	var is issues
	r := decodeRule(data, "", &is)
	if err := is.err(); err != nil {
		return nil, err
	}
	validateRule(r, "", 1, &is)
	if err := is.err(); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseRuleSet decodes and validates a rule set. A missing target defaults to "all".
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var is issues
	rs := decodeRuleSet(data, "", &is)
	if err := is.err(); err != nil {
		return nil, err
	}
	validateRuleSet(rs, "", &is)
	if err := is.err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// ParseChannel decodes and validates a full channel configuration. Nothing is returned unless
// every rule set is valid.
func ParseChannel(data []byte) (*Channel, error) {
	var is issues
	var raw channelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		is.add("", "invalid channel configuration: %v", err)
		return nil, is.err()
	}
	c := &Channel{
		ID:           raw.ID,
		BanThreshold: raw.BanThreshold,
	}
	for i, rsData := range raw.RuleSets {
		if rs := decodeRuleSet(rsData, join("ruleSets", i), &is); rs != nil {
			c.RuleSets = append(c.RuleSets, rs)
		}
	}
	if err := is.err(); err != nil {
		return nil, err
	}
	validateChannel(c, &is)
	if err := is.err(); err != nil {
		return nil, err
	}
	return c, nil
}

func isNull(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null"
}

func decodeRule(data []byte, path string, is *issues) *Rule {
	if isNull(data) {
		is.add(path, "rule is required")
		return nil
	}
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		is.add(path, "invalid rule: %v", err)
		return nil
	}
	r := &Rule{
		Name:      raw.Name,
		Kind:      raw.Type,
		Operation: raw.Operation,
		Invert:    raw.Invert,
	}
	if raw.Type != KindLogical {
		if args := newArgs(raw.Name); args != nil {
			if !isNull(raw.Args) {
				if err := json.Unmarshal(raw.Args, args); err != nil {
					is.add(join(path, "args"), "invalid args: %v", err)
				}
			}
			r.Args = args
		}
	}
	for i, cdata := range raw.Conditions {
		if child := decodeRule(cdata, join(join(path, "conditions"), i), is); child != nil {
			r.Conditions = append(r.Conditions, child)
		}
	}
	return r
}

func decodeAction(data []byte, path string, is *issues) (Action, bool) {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		is.add(path, "invalid action: %v", err)
		return Action{}, false
	}
	a := Action{Type: raw.Type}
	if raw.Type == ActionCooldown && raw.Args != nil && raw.Args.Duration != nil {
		a = NewCooldown(*raw.Args.Duration)
	}
	return a, true
}

func decodeRuleSet(data []byte, path string, is *issues) *RuleSet {
	var raw ruleSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		is.add(path, "invalid rule set: %v", err)
		return nil
	}
	rs := &RuleSet{
		ID:     raw.ID,
		Target: raw.Target,
		Rule:   decodeRule(raw.Rule, join(path, "rule"), is),
	}
	if rs.Target == "" {
		rs.Target = TargetAll
	}
	for i, adata := range raw.Actions {
		if a, ok := decodeAction(adata, join(join(path, "actions"), i), is); ok {
			rs.Actions = append(rs.Actions, a)
		}
	}
	return rs
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRule(data)
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}

func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRuleSet(data)
	if err != nil {
		return err
	}
	*rs = *parsed
	return nil
}

func (c *Channel) UnmarshalJSON(data []byte) error {
	parsed, err := ParseChannel(data)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

func (r *Rule) MarshalJSON() ([]byte, error) {
	out := struct {
		Name       Name      `json:"name"`
		Type       Kind      `json:"type"`
		Args       any       `json:"args"`
		Operation  Operation `json:"operation,omitempty"`
		Invert     bool      `json:"invert,omitempty"`
		Conditions []*Rule   `json:"conditions,omitempty"`
	}{
		Name:       r.Name,
		Type:       r.Kind,
		Args:       r.Args,
		Operation:  r.Operation,
		Invert:     r.Invert,
		Conditions: r.Conditions,
	}
	if r.Args == nil {
		out.Args = struct{}{}
	}
	return json.Marshal(out)
}

func (a Action) MarshalJSON() ([]byte, error) {
	out := actionJSON{Type: a.Type}
	if a.Type == ActionCooldown {
		hours := a.Duration.Hours()
		out.Args = &actionArgsJSON{Duration: &hours}
	}
	return json.Marshal(out)
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var is issues
	parsed, _ := decodeAction(data, "", &is)
	if err := is.err(); err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (rs *RuleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID      string   `json:"id,omitempty"`
		Target  Target   `json:"target"`
		Rule    *Rule    `json:"rule"`
		Actions []Action `json:"actions"`
	}{
		ID:      rs.ID,
		Target:  rs.Target,
		Rule:    rs.Rule,
		Actions: rs.Actions,
	})
}

func (c *Channel) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID           string     `json:"id"`
		BanThreshold *int       `json:"banThreshold"`
		RuleSets     []*RuleSet `json:"ruleSets"`
	}{
		ID:           c.ID,
		BanThreshold: c.BanThreshold,
		RuleSets:     c.RuleSets,
	})
}
