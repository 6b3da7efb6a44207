package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/castmod/castmod/automod/cachestore"
	"github.com/castmod/castmod/automod/rule"

	"golang.org/x/text/cases"
)

var (
	mentionRegex = regexp.MustCompile(`@\w+`)
	linkRegex    = regexp.MustCompile(`(?i)https?://\S+`)

	// the folding Caser is stateless, so safe to share
	folder = cases.Fold()
)

// checker evaluates leaf conditions for one cast in one channel.
type checker struct {
	ctx       context.Context
	eng       *Engine
	channelID string
	cast      *Cast
}

var _ rule.Checker = (*checker)(nil)

// containsText is a substring test, with Unicode case folding unless caseSensitive is set.
func containsText(text, search string, caseSensitive bool) bool {
	if caseSensitive {
		return strings.Contains(text, search)
	}
	return strings.Contains(folder.String(text), folder.String(search))
}

func (c *checker) CheckContainsText(a *rule.ContainsTextArgs, invert bool) (string, error) {
	found := containsText(c.cast.Text, a.SearchText, a.CaseSensitive)
	if !invert && found {
		return "Text contains the text: " + a.SearchText, nil
	} else if invert && !found {
		return "Text does not contain the text: " + a.SearchText, nil
	}
	return "", nil
}

func (c *checker) CheckTextMatchesPattern(a *rule.TextMatchesPatternArgs, invert bool) (string, error) {
	re, err := a.Regexp()
	if err != nil {
		return "", fmt.Errorf("compiling pattern %q: %w", a.Pattern, err)
	}
	matched := re.MatchString(c.cast.Text)
	if matched && !invert {
		return "Text matches pattern: " + a.Pattern, nil
	} else if !matched && invert {
		return "Text does not match pattern: " + a.Pattern, nil
	}
	return "", nil
}

func (c *checker) CheckTooManyMentions(a *rule.MentionsArgs, invert bool) (string, error) {
	if a.MaxMentions == nil {
		return "", fmt.Errorf("maxMentions not set")
	}
	max := *a.MaxMentions
	mentions := mentionRegex.FindAllString(c.cast.Text, -1)
	if !invert && len(mentions) > max {
		return fmt.Sprintf("Too many mentions: %s. Max: %d", strings.Join(mentions, ","), max), nil
	} else if invert && len(mentions) <= max {
		return fmt.Sprintf("Too few mentions: %s. Min: %d", strings.Join(mentions, ","), max), nil
	}
	return "", nil
}

func (c *checker) CheckLinks(a *rule.LinksArgs, invert bool) (string, error) {
	links := linkRegex.FindAllString(c.cast.Text, -1)
	if !invert && len(links) > a.MaxLinks {
		return fmt.Sprintf("Too many links. Max: %d", a.MaxLinks), nil
	} else if invert && len(links) <= a.MaxLinks {
		return fmt.Sprintf("Too few links. Min: %d", a.MaxLinks), nil
	}
	return "", nil
}

func (c *checker) CheckProfileText(a *rule.ProfileTextArgs, invert bool) (string, error) {
	found := containsText(c.cast.Author.Profile.Bio.Text, a.SearchText, a.CaseSensitive)
	if !invert && found {
		return "User profile contains the specified text: " + a.SearchText, nil
	} else if invert && !found {
		return "User profile does not contain the specified text: " + a.SearchText, nil
	}
	return "", nil
}

func (c *checker) CheckDisplayNameText(a *rule.DisplayNameTextArgs, invert bool) (string, error) {
	found := containsText(c.cast.Author.DisplayName, a.SearchText, a.CaseSensitive)
	if !invert && found {
		return "User display name contains text: " + a.SearchText, nil
	} else if invert && !found {
		return "User display name does not contain text: " + a.SearchText, nil
	}
	return "", nil
}

// outOfRange returns a reason for each bound the value falls outside of. Unset and zero bounds never fire.
func outOfRange(val int64, min, max *int64, below, above func(bound int64) string) string {
	var reasons []string
	if min != nil && *min != 0 && val < *min {
		reasons = append(reasons, below(*min))
	}
	if max != nil && *max != 0 && val > *max {
		reasons = append(reasons, above(*max))
	}
	return strings.Join(reasons, ", ")
}

// follower count and FID range conditions can't be inverted; that is rejected when the rule is defined.
func (c *checker) CheckFollowerCount(a *rule.FollowerCountArgs, invert bool) (string, error) {
	return outOfRange(c.cast.Author.FollowerCount, a.Min, a.Max,
		func(min int64) string { return fmt.Sprintf("Follower count less than %d", min) },
		func(max int64) string { return fmt.Sprintf("Follower count greater than %d", max) },
	), nil
}

func (c *checker) CheckFidRange(a *rule.FidRangeArgs, invert bool) (string, error) {
	fid := c.cast.Author.FID
	return outOfRange(fid, a.MinFid, a.MaxFid,
		func(min int64) string { return fmt.Sprintf("FID %d is less than %d", fid, min) },
		func(max int64) string { return fmt.Sprintf("FID %d is greater than %d", fid, max) },
	), nil
}

func (c *checker) CheckNotActive(a *rule.NotActiveArgs, invert bool) (string, error) {
	active := c.cast.Author.ActiveStatus == ActiveStatusActive
	if !invert && !active {
		return "User is not active", nil
	} else if invert && active {
		return "User is active", nil
	}
	return "", nil
}

func (c *checker) CheckCohost(a *rule.CohostArgs, invert bool) (string, error) {
	cohost, err := c.eng.IsCohost(c.ctx, c.cast.Author.FID, c.channelID)
	if err != nil {
		return "", err
	}
	if invert && !cohost {
		return "User is not a cohost", nil
	} else if !invert && cohost {
		return "User is a cohost", nil
	}
	return "", nil
}

// IsCohost checks cohost membership, through the cache when the engine has one.
func (eng *Engine) IsCohost(ctx context.Context, fid int64, channelID string) (bool, error) {
	if eng.Cohosts == nil {
		return false, fmt.Errorf("no cohost lookup configured")
	}
	fill := func(ctx context.Context) (bool, error) {
		cohostFetches.Inc()
		ok, err := eng.Cohosts.IsCohost(ctx, fid, channelID)
		if err != nil {
			return false, fmt.Errorf("looking up cohosts of %s: %w", channelID, err)
		}
		return ok, nil
	}
	if eng.Cache == nil {
		return fill(ctx)
	}
	return cachestore.GetOrFill(ctx, eng.Cache, "cohost", fmt.Sprintf("%s/%d", channelID, fid), fill)
}
