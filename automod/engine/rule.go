package engine

import (
	"slices"
	"sort"
	"time"
)

type TriggerType string

const (
	TriggerContentFilter     TriggerType = "CONTENT_FILTER"
	TriggerSpamDetection     TriggerType = "SPAM_DETECTION"
	TriggerUserBehavior      TriggerType = "USER_BEHAVIOR"
	TriggerRateLimit         TriggerType = "RATE_LIMIT"
	TriggerKeywordMatch      TriggerType = "KEYWORD_MATCH"
	TriggerSentimentAnalysis TriggerType = "SENTIMENT_ANALYSIS"
	TriggerLinkAnalysis      TriggerType = "LINK_ANALYSIS"
	TriggerImageAnalysis     TriggerType = "IMAGE_ANALYSIS"
)

var TriggerTypes = []TriggerType{
	TriggerContentFilter,
	TriggerSpamDetection,
	TriggerUserBehavior,
	TriggerRateLimit,
	TriggerKeywordMatch,
	TriggerSentimentAnalysis,
	TriggerLinkAnalysis,
	TriggerImageAnalysis,
}

func (t TriggerType) Valid() bool {
	return slices.Contains(TriggerTypes, t)
}

// The user-editable portion of a moderation rule, as submitted for create or update.
type RuleDraft struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Priority    int           `json:"priority"`
	TriggerType TriggerType   `json:"triggerType"`
	TargetTypes []ContentType `json:"targetTypes"`
	Conditions  ConditionList `json:"conditions"`
	Actions     ActionList    `json:"actions"`
	IsActive    bool          `json:"isActive"`
	// Minimum seconds between triggers of this rule for the same target. Zero disables.
	CooldownPeriod int `json:"cooldownPeriod,omitempty"`
	// Ceiling on triggers of this rule over any rolling hour. Zero disables.
	MaxTriggersPerHour int      `json:"maxTriggersPerHour,omitempty"`
	Whitelist          []string `json:"whitelist,omitempty"`
	Blacklist          []string `json:"blacklist,omitempty"`
	ExemptRoles        []string `json:"exemptRoles,omitempty"`
}

// A persisted moderation rule.
type Rule struct {
	ID string `json:"id"`
	RuleDraft
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *Rule) Cooldown() time.Duration {
	return time.Duration(r.CooldownPeriod) * time.Second
}

func (r *Rule) AppliesTo(t ContentType) bool {
	return slices.Contains(r.TargetTypes, t)
}

// Higher priority first, then older rules first, then by ID so the order is total.
func ruleLess(a, b *Rule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Sorts rules in place into evaluation order.
func SortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return ruleLess(rules[i], rules[j])
	})
}
