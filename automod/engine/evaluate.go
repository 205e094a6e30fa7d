package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/socialdesk/moddesk/automod/helpers"
	"github.com/socialdesk/moddesk/automod/keyword"
)

// Distinct counter of content items per owner (values are item IDs). Backs RateCondition.
const OwnerContentCounter = "owner-content"

// Marks items already included in OwnerContentCounter, keyed by target ref.
const ownerContentSeen = "owner-content-seen"

// A rule that fired for a content item, and should have its actions executed.
type MatchResult struct {
	Rule *Rule        `json:"rule"`
	Item *ContentItem `json:"item"`
	// Owner is on the rule's blacklist. Conditions still had to hold.
	Blacklisted bool      `json:"blacklisted,omitempty"`
	MatchedAt   time.Time `json:"matchedAt"`
}

// Lazily computed features of a single item, shared across all rules evaluated against it.
type evalState struct {
	eng  *Engine
	item *ContentItem

	tokens      []string
	hosts       []string
	hostsDone   bool
	roles       []string
	rolesLoaded bool
}

func (st *evalState) bodyTokens() []string {
	if st.tokens == nil {
		st.tokens = keyword.TokenizeText(st.item.Body)
	}
	return st.tokens
}

func (st *evalState) linkHosts() []string {
	if !st.hostsDone {
		st.hosts = helpers.ExtractHosts(st.item.Body, st.item.Links)
		st.hostsDone = true
	}
	return st.hosts
}

// Owner's content count for the period, including the item being evaluated.
func (st *evalState) ownerContentCount(ctx context.Context, period string) (int, error) {
	n, err := st.eng.Counters.GetCountDistinct(ctx, OwnerContentCounter, st.item.OwnerID, period)
	if err != nil {
		return 0, err
	}
	seen, err := st.eng.ownerContentCounted(ctx, st.item)
	if err != nil {
		return 0, err
	}
	if !seen {
		n++
	}
	return n, nil
}

func (st *evalState) ownerRoles(ctx context.Context) ([]string, error) {
	if st.rolesLoaded {
		return st.roles, nil
	}
	roles, err := st.eng.GetUserRoles(ctx, st.item.OwnerID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	// unknown owners have no roles
	st.roles = roles
	st.rolesLoaded = true
	return st.roles, nil
}

// Determines which rules fire for the item, in evaluation order (priority descending, then rule age).
//
// Read-only: nothing is recorded and no counters are incremented. Cooldowns and hourly ceilings are checked against the action log as of the call.
func (eng *Engine) Evaluate(ctx context.Context, item *ContentItem, rules []*Rule) ([]MatchResult, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: content item is required", ErrValidation)
	}
	now := eng.now()
	ordered := slices.Clone(rules)
	SortRules(ordered)

	st := &evalState{eng: eng, item: item}
	matches := []MatchResult{}
	for _, rule := range ordered {
		ok, blacklisted, err := eng.ruleFires(ctx, st, rule, now)
		if err != nil {
			return nil, fmt.Errorf("evaluating rule %s: %w", rule.ID, err)
		}
		if !ok {
			continue
		}
		matches = append(matches, MatchResult{
			Rule:        rule,
			Item:        item,
			Blacklisted: blacklisted,
			MatchedAt:   now,
		})
	}
	return matches, nil
}

func (eng *Engine) ruleFires(ctx context.Context, st *evalState, rule *Rule, now time.Time) (bool, bool, error) {
	item := st.item
	if !rule.IsActive || !rule.AppliesTo(item.Type) {
		return false, false, nil
	}

	// whitelist always wins, including over the blacklist
	if slices.Contains(rule.Whitelist, item.OwnerID) {
		ruleSkipCount.WithLabelValues("whitelist").Inc()
		return false, false, nil
	}
	if len(rule.ExemptRoles) > 0 {
		roles, err := st.ownerRoles(ctx)
		if err != nil {
			return false, false, err
		}
		for _, r := range roles {
			if slices.Contains(rule.ExemptRoles, r) {
				ruleSkipCount.WithLabelValues("exempt-role").Inc()
				return false, false, nil
			}
		}
	}

	for _, cond := range rule.Conditions {
		ok, err := eng.checkCondition(ctx, st, cond)
		if err != nil {
			return false, false, err
		}
		if !ok {
			return false, false, nil
		}
	}
	blacklisted := slices.Contains(rule.Blacklist, item.OwnerID)

	if rule.CooldownPeriod > 0 {
		last, found, err := eng.Recorder.LastTriggered(ctx, rule.ID, item.TargetRef())
		if err != nil {
			return false, false, err
		}
		if found && now.Sub(last) < rule.Cooldown() {
			eng.Logger.Debug("rule in cooldown", "rule", rule.ID, "target", item.TargetRef(), "lastTriggered", last)
			ruleSkipCount.WithLabelValues("cooldown").Inc()
			return false, false, nil
		}
	}
	if rule.MaxTriggersPerHour > 0 {
		n, err := eng.Recorder.CountSince(ctx, rule.ID, now.Add(-time.Hour))
		if err != nil {
			return false, false, err
		}
		if n >= rule.MaxTriggersPerHour {
			eng.Logger.Warn("rule hit hourly trigger ceiling", "rule", rule.ID, "count", n, "max", rule.MaxTriggersPerHour)
			ruleSkipCount.WithLabelValues("rate-ceiling").Inc()
			return false, false, nil
		}
	}
	return true, blacklisted, nil
}

func (eng *Engine) checkCondition(ctx context.Context, st *evalState, cond Condition) (bool, error) {
	item := st.item
	switch c := cond.(type) {
	case KeywordCondition:
		return eng.checkKeywords(ctx, st, c)
	case RateCondition:
		n, err := st.ownerContentCount(ctx, c.Period)
		if err != nil {
			return false, err
		}
		return n >= c.Threshold, nil
	case SentimentCondition:
		if item.SentimentScore == nil {
			return false, nil
		}
		score := *item.SentimentScore
		switch c.Operator {
		case SentimentLT:
			return score < c.Threshold, nil
		case SentimentLTE:
			return score <= c.Threshold, nil
		case SentimentGT:
			return score > c.Threshold, nil
		case SentimentGTE:
			return score >= c.Threshold, nil
		}
		return false, fmt.Errorf("unknown sentiment operator: %s", c.Operator)
	case LinkCondition:
		return eng.checkLinks(ctx, st, c)
	case ImageCondition:
		for _, label := range c.Labels {
			if score, ok := item.ImageLabels[label]; ok && score >= c.MinScore {
				return true, nil
			}
		}
		return false, nil
	case RegexCondition:
		re, err := c.compiled()
		if err != nil {
			return false, fmt.Errorf("%w: regex condition: %w", ErrValidation, err)
		}
		return re.MatchString(item.Body), nil
	default:
		return false, fmt.Errorf("unhandled condition type: %T", cond)
	}
}

func (eng *Engine) checkKeywords(ctx context.Context, st *evalState, c KeywordCondition) (bool, error) {
	match := func(kw string) bool {
		if c.Fuzzy {
			return keyword.SlugContainsKeyword(st.item.Body, kw)
		}
		return keyword.TokensContainPhrase(st.bodyTokens(), keyword.TokenizeText(kw))
	}

	anySetMember := func() (bool, error) {
		members, err := eng.Sets.Members(ctx, c.Set)
		if err != nil {
			return false, err
		}
		return slices.ContainsFunc(members, match), nil
	}

	if c.MatchAll {
		for _, kw := range c.Keywords {
			if !match(kw) {
				return false, nil
			}
		}
		if c.Set != "" {
			return anySetMember()
		}
		return len(c.Keywords) > 0, nil
	}

	if slices.ContainsFunc(c.Keywords, match) {
		return true, nil
	}
	if c.Set != "" {
		return anySetMember()
	}
	return false, nil
}

func (eng *Engine) checkLinks(ctx context.Context, st *evalState, c LinkCondition) (bool, error) {
	hosts := st.linkHosts()
	if len(hosts) == 0 {
		return false, nil
	}
	domains := c.Domains
	if c.Set != "" {
		members, err := eng.Sets.Members(ctx, c.Set)
		if err != nil {
			return false, err
		}
		domains = append(slices.Clone(domains), members...)
	}

	listed := func(host string) bool {
		for _, d := range domains {
			if helpers.HostMatchesDomain(host, d) {
				return true
			}
		}
		return false
	}
	for _, h := range hosts {
		if listed(h) == (c.Mode == LinkDeny) {
			return true, nil
		}
	}
	return false, nil
}
