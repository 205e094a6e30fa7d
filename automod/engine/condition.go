package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/socialdesk/moddesk/automod/countstore"

	lru "github.com/hashicorp/golang-lru/v2"
)

type ConditionKind string

const (
	ConditionKeyword   ConditionKind = "keyword"
	ConditionRate      ConditionKind = "rate"
	ConditionSentiment ConditionKind = "sentiment"
	ConditionLink      ConditionKind = "link"
	ConditionImage     ConditionKind = "image"
	ConditionRegex     ConditionKind = "regex"
)

// A single predicate over a content item. The set of implementations is closed: see the Condition* structs in this file.
type Condition interface {
	Kind() ConditionKind
	// returns itemized problems with the condition's own fields
	validate() []string
}

// Matches when the item body contains the keywords. Keywords may be multi-word phrases.
type KeywordCondition struct {
	Keywords []string `json:"keywords,omitempty"`
	// Name of a keyword set in the engine's SetStore, checked in addition to Keywords.
	Set string `json:"set,omitempty"`
	// Require every keyword (not just one) to be present. Doesn't apply to Set members.
	MatchAll bool `json:"matchAll,omitempty"`
	// Compare slugified text instead of whole tokens, so "s.p.a.m" and "spammy" match "spam".
	Fuzzy bool `json:"fuzzy,omitempty"`
}

// Matches when the item's owner has created at least Threshold items (including this one) within the counter period.
type RateCondition struct {
	Threshold int    `json:"threshold"`
	Period    string `json:"period"`
}

type SentimentOperator string

const (
	SentimentLT  SentimentOperator = "lt"
	SentimentLTE SentimentOperator = "lte"
	SentimentGT  SentimentOperator = "gt"
	SentimentGTE SentimentOperator = "gte"
)

// Compares the item's sentiment score against a threshold. Items without a score never match.
type SentimentCondition struct {
	Operator  SentimentOperator `json:"operator"`
	Threshold float64           `json:"threshold"`
}

type LinkMode string

const (
	// match if any link points at a listed domain
	LinkDeny LinkMode = "deny"
	// match if any link points somewhere other than the listed domains
	LinkAllow LinkMode = "allow"
)

// Checks the destinations of links in the item (attachments and URLs in the body).
type LinkCondition struct {
	Domains []string `json:"domains,omitempty"`
	// Name of a domain set in the engine's SetStore, merged with Domains.
	Set  string   `json:"set,omitempty"`
	Mode LinkMode `json:"mode"`
}

// Matches when the image classifier assigned any of the labels with at least MinScore confidence.
type ImageCondition struct {
	Labels   []string `json:"labels"`
	MinScore float64  `json:"minScore"`
}

// Matches when the regular expression matches anywhere in the item body.
type RegexCondition struct {
	Pattern string `json:"pattern"`
}

// compiled patterns, shared by all rules
var regexCache = func() *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](512)
	if err != nil {
		panic(err)
	}
	return c
}()

func (c RegexCondition) compiled() (*regexp.Regexp, error) {
	if re, ok := regexCache.Get(c.Pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(c.Pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Add(c.Pattern, re)
	return re, nil
}

func (KeywordCondition) Kind() ConditionKind   { return ConditionKeyword }
func (RateCondition) Kind() ConditionKind      { return ConditionRate }
func (SentimentCondition) Kind() ConditionKind { return ConditionSentiment }
func (LinkCondition) Kind() ConditionKind      { return ConditionLink }
func (ImageCondition) Kind() ConditionKind     { return ConditionImage }
func (RegexCondition) Kind() ConditionKind     { return ConditionRegex }

func (c KeywordCondition) validate() []string {
	errs := []string{}
	if len(c.Keywords) == 0 && c.Set == "" {
		errs = append(errs, "keyword condition requires keywords or a set name")
	}
	for _, kw := range c.Keywords {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, "keyword condition contains an empty keyword")
			break
		}
	}
	return errs
}

func (c RateCondition) validate() []string {
	errs := []string{}
	if c.Threshold <= 0 {
		errs = append(errs, "rate condition threshold must be positive")
	}
	if !countstore.ValidPeriod(c.Period) {
		errs = append(errs, fmt.Sprintf("rate condition period must be one of hour, day, total (got %q)", c.Period))
	}
	return errs
}

func (c SentimentCondition) validate() []string {
	switch c.Operator {
	case SentimentLT, SentimentLTE, SentimentGT, SentimentGTE:
	default:
		return []string{fmt.Sprintf("sentiment condition has unknown operator %q", c.Operator)}
	}
	if c.Threshold < -1 || c.Threshold > 1 {
		return []string{"sentiment condition threshold must be within [-1, 1]"}
	}
	return nil
}

func (c LinkCondition) validate() []string {
	errs := []string{}
	if len(c.Domains) == 0 && c.Set == "" {
		errs = append(errs, "link condition requires domains or a set name")
	}
	if c.Mode != LinkDeny && c.Mode != LinkAllow {
		errs = append(errs, fmt.Sprintf("link condition mode must be deny or allow (got %q)", c.Mode))
	}
	return errs
}

func (c ImageCondition) validate() []string {
	errs := []string{}
	if len(c.Labels) == 0 {
		errs = append(errs, "image condition requires at least one label")
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		errs = append(errs, "image condition minScore must be within [0, 1]")
	}
	return errs
}

func (c RegexCondition) validate() []string {
	if c.Pattern == "" {
		return []string{"regex condition requires a pattern"}
	}
	if _, err := c.compiled(); err != nil {
		return []string{fmt.Sprintf("regex condition pattern does not compile: %s", err)}
	}
	return nil
}

// Ordered list of conditions, serialized as JSON objects with a "type" discriminator.
type ConditionList []Condition

func (l ConditionList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for _, c := range l {
		b, err := marshalTagged(string(c.Kind()), c)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return json.Marshal(out)
}

func (l *ConditionList) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return err
	}
	out := make(ConditionList, 0, len(raws))
	for i, raw := range raws {
		kind, err := tagOf(raw)
		if err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
		var c Condition
		switch ConditionKind(kind) {
		case ConditionKeyword:
			var v KeywordCondition
			err = json.Unmarshal(raw, &v)
			c = v
		case ConditionRate:
			var v RateCondition
			err = json.Unmarshal(raw, &v)
			c = v
		case ConditionSentiment:
			var v SentimentCondition
			err = json.Unmarshal(raw, &v)
			c = v
		case ConditionLink:
			var v LinkCondition
			err = json.Unmarshal(raw, &v)
			c = v
		case ConditionImage:
			var v ImageCondition
			err = json.Unmarshal(raw, &v)
			c = v
		case ConditionRegex:
			var v RegexCondition
			err = json.Unmarshal(raw, &v)
			c = v
		default:
			return fmt.Errorf("condition %d: unknown condition type %q", i, kind)
		}
		if err != nil {
			return fmt.Errorf("condition %d (%s): %w", i, kind, err)
		}
		out = append(out, c)
	}
	*l = out
	return nil
}

// Marshals a struct to a JSON object and adds a "type" field.
func marshalTagged(tag string, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	t, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}
	obj["type"] = t
	return json.Marshal(obj)
}

func tagOf(raw json.RawMessage) (string, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	if env.Type == "" {
		return "", fmt.Errorf("missing type field")
	}
	return env.Type, nil
}
