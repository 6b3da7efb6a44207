package rule

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is one problem found in a rule definition. Path is the dotted location of the
// offending field, eg "ruleSets.0.rule.conditions.1.args.pattern".
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors is returned whenever any part of a definition is invalid. Definitions are
// accepted all-or-nothing.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "invalid rule definition"
	case 1:
		return e[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", e[0].Error(), len(e)-1)
	}
}

type issues struct {
	errs ValidationErrors
}

func (is *issues) add(path, format string, args ...any) {
	is.errs = append(is.errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (is *issues) err() error {
	if len(is.errs) == 0 {
		return nil
	}
	return is.errs
}

func join(path string, elem any) string {
	var s string
	switch v := elem.(type) {
	case int:
		s = strconv.Itoa(v)
	case string:
		s = v
	default:
		s = fmt.Sprint(v)
	}
	if path == "" {
		return s
	}
	return path + "." + s
}

var argsValidator = newArgsValidator()

func newArgsValidator() *validator.Validate {
	v := validator.New()
	// report fields by their JSON names, which is what channel owners see
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

// Validate checks the whole tree. Pattern args are compiled in place, so evaluation never
// compiles a pattern that was not accepted here.
func (r *Rule) Validate() error {
	var is issues
	validateRule(r, "", 1, &is)
	return is.err()
}

func (rs *RuleSet) Validate() error {
	var is issues
	validateRuleSet(rs, "", &is)
	return is.err()
}

func (c *Channel) Validate() error {
	var is issues
	validateChannel(c, &is)
	return is.err()
}

func validateChannel(c *Channel, is *issues) {
	if c.ID == "" {
		is.add("id", "is required")
	}
	if c.BanThreshold != nil && *c.BanThreshold < 1 {
		is.add("banThreshold", "must be at least 1")
	}
	if len(c.RuleSets) == 0 {
		is.add("ruleSets", "at least one rule set is required")
	}
	for i, rs := range c.RuleSets {
		validateRuleSet(rs, join("ruleSets", i), is)
	}
}

func validateRuleSet(rs *RuleSet, path string, is *issues) {
	if rs == nil {
		is.add(path, "rule set is required")
		return
	}
	switch rs.Target {
	case "", TargetAll, TargetRoot, TargetReply:
	default:
		is.add(join(path, "target"), "must be one of all, root, reply")
	}
	validateRule(rs.Rule, join(path, "rule"), 1, is)

	if len(rs.Actions) == 0 {
		is.add(join(path, "actions"), "at least one action is required")
	}
	for i, a := range rs.Actions {
		apath := join(join(path, "actions"), i)
		if !a.Type.Configurable() {
			is.add(join(apath, "type"), "unsupported action %q", a.Type)
			continue
		}
		if a.Type == ActionCooldown && a.Duration <= 0 {
			is.add(join(apath, "args.duration"), "cooldown requires a positive duration in hours")
		}
	}
}

func validateRule(r *Rule, path string, depth int, is *issues) {
	if r == nil {
		is.add(path, "rule is required")
		return
	}
	if depth > MaxDepth {
		is.add(path, "rules may not be nested more than %d deep", MaxDepth)
		return
	}
	def, ok := Definitions[r.Name]
	if !ok {
		is.add(join(path, "name"), "unknown rule %q", r.Name)
		return
	}
	if r.Invert && !def.Invertable {
		is.add(join(path, "invert"), "%s rules cannot be inverted", r.Name)
	}

	switch r.Kind {
	case KindLogical:
		if !r.Name.IsComposite() {
			is.add(join(path, "name"), "LOGICAL rules must be named \"and\" or \"or\"")
		}
		if r.Args != nil {
			is.add(join(path, "args"), "LOGICAL rules take no args")
		}
		switch r.Operation {
		case OpAnd:
			if len(r.Conditions) == 0 {
				is.add(join(path, "conditions"), "AND rules require at least one condition")
			}
		case OpOr:
		default:
			is.add(join(path, "operation"), "LOGICAL rules require operation AND or OR")
		}
		for i, c := range r.Conditions {
			validateRule(c, join(join(path, "conditions"), i), depth+1, is)
		}
	case KindCondition:
		if len(r.Conditions) > 0 {
			is.add(join(path, "conditions"), "only LOGICAL rules may have conditions")
		}
		if r.Operation != "" {
			is.add(join(path, "operation"), "only LOGICAL rules take an operation")
		}
		if r.Name.IsComposite() {
			return
		}
		if r.Args == nil {
			is.add(join(path, "args"), "is required")
			return
		}
		if r.Args.RuleName() != r.Name {
			is.add(join(path, "args"), "args for %s do not match rule %s", r.Args.RuleName(), r.Name)
			return
		}
		validateArgs(r.Args, join(path, "args"), is)
	default:
		is.add(join(path, "type"), "must be CONDITION or LOGICAL")
	}
}

func validateArgs(args Args, path string, is *issues) {
	if err := argsValidator.Struct(args); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				is.add(join(path, fe.Field()), "%s", fieldMessage(fe))
			}
		} else {
			is.add(path, "%v", err)
		}
	}

	p, ok := args.(*TextMatchesPatternArgs)
	if !ok || p.Pattern == "" {
		return
	}
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		is.add(join(path, "pattern"), "the pattern %q is no good: %v. Backreferences and lookahead assertions are not supported", p.Pattern, err)
		return
	}
	p.re = re
}
