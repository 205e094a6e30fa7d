package engine

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() RuleDraft {
	return RuleDraft{
		Name:        "spam",
		Priority:    1,
		TriggerType: TriggerKeywordMatch,
		TargetTypes: []ContentType{ContentPost},
		Conditions:  ConditionList{KeywordCondition{Keywords: []string{"spam"}}},
		Actions:     ActionList{FlagAction{Flag: "spam"}},
		IsActive:    true,
	}
}

func TestValidateRule(t *testing.T) {
	assert := assert.New(t)

	d := validDraft()
	res := ValidateRule(&d)
	assert.True(res.IsValid)
	assert.Empty(res.Errors)
	assert.NoError(res.Err())

	d = validDraft()
	d.Conditions = ConditionList{}
	res = ValidateRule(&d)
	assert.False(res.IsValid)
	assert.Equal([]string{"conditions must be a non-empty array"}, res.Errors)

	// every problem is reported, not just the first
	d = RuleDraft{
		TriggerType: "BOGUS",
		TargetTypes: []ContentType{"video"},
		Conditions: ConditionList{
			RateCondition{Threshold: 0, Period: "week"},
			RegexCondition{Pattern: "("},
		},
		Actions:        ActionList{NotifyAction{}},
		CooldownPeriod: -1,
	}
	res = ValidateRule(&d)
	assert.False(res.IsValid)
	assert.Len(res.Errors, 9)
	assert.Contains(res.Errors, "name is required")
	assert.Contains(res.Errors, "conditions[0]: rate condition threshold must be positive")
	assert.Contains(res.Errors, `targetTypes contains unknown content type "video"`)
	assert.Contains(res.Errors, "actions[0]: notify action requires a target")

	err := res.Err()
	assert.ErrorIs(err, ErrValidation)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(res.Errors, verr.Errors)

	res = ValidateRule(nil)
	assert.False(res.IsValid)
}

func TestRuleJSON(t *testing.T) {
	assert := assert.New(t)

	raw := `{
		"name": "links",
		"priority": 3,
		"triggerType": "LINK_ANALYSIS",
		"targetTypes": ["post", "comment"],
		"conditions": [
			{"type": "link", "domains": ["bad.com"], "mode": "deny"},
			{"type": "sentiment", "operator": "lt", "threshold": -0.5}
		],
		"actions": [
			{"type": "remove", "reason": "malicious link"},
			{"type": "notify", "target": "moderators", "message": "removed {target}"}
		],
		"isActive": true,
		"cooldownPeriod": 60
	}`
	var d RuleDraft
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	assert.True(ValidateRule(&d).IsValid)
	assert.Equal(LinkCondition{Domains: []string{"bad.com"}, Mode: LinkDeny}, d.Conditions[0])
	assert.Equal(SentimentCondition{Operator: SentimentLT, Threshold: -0.5}, d.Conditions[1])
	assert.Equal([]string{"remove", "notify"}, d.Actions.Kinds())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	var again RuleDraft
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(d, again)

	assert.Error(json.Unmarshal([]byte(`{"conditions": [{"type": "astrology"}]}`), &d))
	assert.Error(json.Unmarshal([]byte(`{"actions": [{"reason": "untyped"}]}`), &d))
}
