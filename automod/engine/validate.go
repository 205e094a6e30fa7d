package engine

import (
	"fmt"
	"strings"
)

type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Returns nil if valid, otherwise a *ValidationError carrying all the messages.
func (v ValidationResult) Err() error {
	if v.IsValid {
		return nil
	}
	return &ValidationError{Errors: v.Errors}
}

// Checks structural well-formedness of a rule before it is persisted or activated.
//
// Pure function. All problems are collected, not just the first.
func ValidateRule(draft *RuleDraft) ValidationResult {
	errs := []string{}
	if draft == nil {
		return ValidationResult{IsValid: false, Errors: []string{"rule is required"}}
	}

	if strings.TrimSpace(draft.Name) == "" {
		errs = append(errs, "name is required")
	}
	if !draft.TriggerType.Valid() {
		errs = append(errs, fmt.Sprintf("triggerType must be one of %v (got %q)", TriggerTypes, draft.TriggerType))
	}

	if len(draft.TargetTypes) == 0 {
		errs = append(errs, "targetTypes must be a non-empty array")
	}
	for _, t := range draft.TargetTypes {
		if !t.Valid() {
			errs = append(errs, fmt.Sprintf("targetTypes contains unknown content type %q", t))
		}
	}

	if len(draft.Conditions) == 0 {
		errs = append(errs, "conditions must be a non-empty array")
	}
	for i, c := range draft.Conditions {
		if c == nil {
			errs = append(errs, fmt.Sprintf("conditions[%d]: missing condition", i))
			continue
		}
		for _, msg := range c.validate() {
			errs = append(errs, fmt.Sprintf("conditions[%d]: %s", i, msg))
		}
	}

	if len(draft.Actions) == 0 {
		errs = append(errs, "actions must be a non-empty array")
	}
	for i, a := range draft.Actions {
		if a == nil {
			errs = append(errs, fmt.Sprintf("actions[%d]: missing action", i))
			continue
		}
		for _, msg := range a.validate() {
			errs = append(errs, fmt.Sprintf("actions[%d]: %s", i, msg))
		}
	}

	if draft.CooldownPeriod < 0 {
		errs = append(errs, "cooldownPeriod must not be negative")
	}
	if draft.MaxTriggersPerHour < 0 {
		errs = append(errs, "maxTriggersPerHour must not be negative")
	}

	return ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}
