package rule

import (
	"regexp"
)

// Args holds the typed arguments of a condition rule. The interface is sealed: the only
// implementations are the args types in this file, one per condition name.
type Args interface {
	RuleName() Name
	// Accept hands the args to the matching Checker method and returns its result.
	Accept(c Checker, invert bool) (string, error)

	sealed()
}

// Checker evaluates each kind of condition. Every condition args type dispatches to exactly
// one method here, so an implementation must cover every condition kind to compile.
//
// Each method returns a non-empty reason when the cast violates the condition (taking invert
// into account), or an empty string otherwise.
type Checker interface {
	CheckContainsText(a *ContainsTextArgs, invert bool) (string, error)
	CheckTextMatchesPattern(a *TextMatchesPatternArgs, invert bool) (string, error)
	CheckTooManyMentions(a *MentionsArgs, invert bool) (string, error)
	CheckLinks(a *LinksArgs, invert bool) (string, error)
	CheckProfileText(a *ProfileTextArgs, invert bool) (string, error)
	CheckDisplayNameText(a *DisplayNameTextArgs, invert bool) (string, error)
	CheckFollowerCount(a *FollowerCountArgs, invert bool) (string, error)
	CheckNotActive(a *NotActiveArgs, invert bool) (string, error)
	CheckFidRange(a *FidRangeArgs, invert bool) (string, error)
	CheckCohost(a *CohostArgs, invert bool) (string, error)
}

// shared shape of the substring conditions
type TextArgs struct {
	SearchText    string `json:"searchText" validate:"required"`
	CaseSensitive bool   `json:"caseSensitive"`
}

// post text contains SearchText
type ContainsTextArgs TextArgs

// author bio contains SearchText
type ProfileTextArgs TextArgs

// author display name contains SearchText
type DisplayNameTextArgs TextArgs

type TextMatchesPatternArgs struct {
	Pattern string `json:"pattern" validate:"required"`

	re *regexp.Regexp
}

// NewPatternArgs compiles pattern, failing on syntax the linear-time engine does not support.
func NewPatternArgs(pattern string) (*TextMatchesPatternArgs, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &TextMatchesPatternArgs{Pattern: pattern, re: re}, nil
}

// Regexp returns the compiled pattern. Args built by parsing or NewPatternArgs are compiled once;
// a zero-value literal is compiled on each call.
func (a *TextMatchesPatternArgs) Regexp() (*regexp.Regexp, error) {
	if a.re != nil {
		return a.re, nil
	}
	return regexp.Compile(a.Pattern)
}

type MentionsArgs struct {
	MaxMentions *int `json:"maxMentions" validate:"required,gte=0"`
}

type LinksArgs struct {
	MaxLinks int `json:"maxLinks" validate:"gte=0"`
}

// Bounds are independent; an unset or zero bound never fires.
type FollowerCountArgs struct {
	Min *int64 `json:"min,omitempty" validate:"omitempty,gte=0"`
	Max *int64 `json:"max,omitempty" validate:"omitempty,gte=0"`
}

type FidRangeArgs struct {
	MinFid *int64 `json:"minFid,omitempty" validate:"omitempty,gte=0"`
	MaxFid *int64 `json:"maxFid,omitempty" validate:"omitempty,gte=0"`
}

type NotActiveArgs struct{}

type CohostArgs struct{}

func (*ContainsTextArgs) RuleName() Name       { return NameContainsText }
func (*TextMatchesPatternArgs) RuleName() Name { return NameTextMatchesPattern }
func (*MentionsArgs) RuleName() Name           { return NameContainsTooManyMentions }
func (*LinksArgs) RuleName() Name              { return NameContainsLinks }
func (*ProfileTextArgs) RuleName() Name        { return NameUserProfileContainsText }
func (*DisplayNameTextArgs) RuleName() Name    { return NameUserDisplayNameContainsText }
func (*FollowerCountArgs) RuleName() Name      { return NameUserFollowerCount }
func (*NotActiveArgs) RuleName() Name          { return NameUserIsNotActive }
func (*FidRangeArgs) RuleName() Name           { return NameUserFidInRange }
func (*CohostArgs) RuleName() Name             { return NameUserIsCohost }

func (a *ContainsTextArgs) Accept(c Checker, invert bool) (string, error) {
	return c.CheckContainsText(a, invert)
}

func (a *TextMatchesPatternArgs) Accept(c Checker, invert bool) (string, error) {
	return c.CheckTextMatchesPattern(a, invert)
}

func (a *MentionsArgs) Accept(c Checker, invert bool) (string, error) {
	return c.CheckTooManyMentions(a, invert)
}

func (a *LinksArgs) Accept(c Checker, invert bool) (string, error) {
	return c.CheckLinks(a, invert)
}

func (a *ProfileTextArgs) Accept(c Checker, invert bool) (string, error) {
	return c.CheckProfileText(a, invert)
}

func (a *DisplayNameTextArgs) Accept(c Checker, invert bool) (string, error) {
	return c.CheckDisplayNameText(a, invert)
}

func (a *FollowerCountArgs) Accept(c Checker, invert bool) (string, error) {
	return c.CheckFollowerCount(a, invert)
}

func (a *NotActiveArgs) Accept(c Checker, invert bool) (string, error) {
	return c.CheckNotActive(a, invert)
}

func (a *FidRangeArgs) Accept(c Checker, invert bool) (string, error) {
	return c.CheckFidRange(a, invert)
}

func (a *CohostArgs) Accept(c Checker, invert bool) (string, error) {
	return c.CheckCohost(a, invert)
}

func (*ContainsTextArgs) sealed()       {}
func (*TextMatchesPatternArgs) sealed() {}
func (*MentionsArgs) sealed()           {}
func (*LinksArgs) sealed()              {}
func (*ProfileTextArgs) sealed()        {}
func (*DisplayNameTextArgs) sealed()    {}
func (*FollowerCountArgs) sealed()      {}
func (*NotActiveArgs) sealed()          {}
func (*FidRangeArgs) sealed()           {}
func (*CohostArgs) sealed()             {}

// newArgs returns a zero args value for a condition name, or nil for composite and unknown names.
func newArgs(n Name) Args {
	switch n {
	case NameContainsText:
		return &ContainsTextArgs{}
	case NameTextMatchesPattern:
		return &TextMatchesPatternArgs{}
	case NameContainsTooManyMentions:
		return &MentionsArgs{}
	case NameContainsLinks:
		return &LinksArgs{}
	case NameUserProfileContainsText:
		return &ProfileTextArgs{}
	case NameUserDisplayNameContainsText:
		return &DisplayNameTextArgs{}
	case NameUserFollowerCount:
		return &FollowerCountArgs{}
	case NameUserIsNotActive:
		return &NotActiveArgs{}
	case NameUserFidInRange:
		return &FidRangeArgs{}
	case NameUserIsCohost:
		return &CohostArgs{}
	}
	return nil
}
