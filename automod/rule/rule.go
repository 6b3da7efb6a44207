package rule

// Name identifies what a rule node checks. The set of names is closed: every name is
// either a composite ("and", "or") or has exactly one condition args type in args.go.
type Name string

const (
	NameAnd                         Name = "and"
	NameOr                          Name = "or"
	NameContainsText                Name = "containsText"
	NameTextMatchesPattern          Name = "textMatchesPattern"
	NameContainsTooManyMentions     Name = "containsTooManyMentions"
	NameContainsLinks               Name = "containsLinks"
	NameUserProfileContainsText     Name = "userProfileContainsText"
	NameUserDisplayNameContainsText Name = "userDisplayNameContainsText"
	NameUserFollowerCount           Name = "userFollowerCount"
	NameUserIsNotActive             Name = "userIsNotActive"
	NameUserFidInRange              Name = "userFidInRange"
	NameUserIsCohost                Name = "userIsCohost"
)

// Names lists every rule name, in catalogue order.
var Names = []Name{
	NameAnd,
	NameOr,
	NameContainsText,
	NameTextMatchesPattern,
	NameContainsTooManyMentions,
	NameContainsLinks,
	NameUserProfileContainsText,
	NameUserDisplayNameContainsText,
	NameUserFollowerCount,
	NameUserIsNotActive,
	NameUserFidInRange,
	NameUserIsCohost,
}

func (n Name) IsComposite() bool {
	return n == NameAnd || n == NameOr
}

func (n Name) Known() bool {
	_, ok := Definitions[n]
	return ok
}

type Kind string

const (
	// leaf node, evaluated against a cast
	KindCondition Kind = "CONDITION"
	// composite node, evaluated against its child rules
	KindLogical Kind = "LOGICAL"
)

type Operation string

const (
	OpAnd Operation = "AND"
	OpOr  Operation = "OR"
)

// MaxDepth bounds how deeply rule trees may nest.
const MaxDepth = 10

// Rule is one node of a rule tree.
//
// LOGICAL nodes carry an Operation and own their Conditions (children, in evaluation order) and
// have nil Args. CONDITION nodes carry typed Args matching their Name, except the pass-through
// "and"/"or" names which have nil Args and never report a violation on their own.
type Rule struct {
	Name       Name
	Kind       Kind
	Args       Args
	Operation  Operation
	Invert     bool
	Conditions []*Rule
}

// NewCondition builds a leaf node whose name is taken from its args.
func NewCondition(args Args, invert bool) *Rule {
	return &Rule{
		Name:   args.RuleName(),
		Kind:   KindCondition,
		Args:   args,
		Invert: invert,
	}
}

// All builds a LOGICAL node which fires only when every child fires.
func All(children ...*Rule) *Rule {
	return &Rule{
		Name:       NameAnd,
		Kind:       KindLogical,
		Operation:  OpAnd,
		Conditions: children,
	}
}

// Any builds a LOGICAL node which fires when any child fires.
func Any(children ...*Rule) *Rule {
	return &Rule{
		Name:       NameOr,
		Kind:       KindLogical,
		Operation:  OpOr,
		Conditions: children,
	}
}

// Walk visits every node of the tree depth-first, parents before children.
func (r *Rule) Walk(fn func(node *Rule)) {
	if r == nil {
		return
	}
	fn(r)
	for _, c := range r.Conditions {
		c.Walk(fn)
	}
}
