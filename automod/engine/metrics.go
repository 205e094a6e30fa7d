package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var itemProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "moddesk_item_duration_sec",
	Help: "Total duration of moderation processing for a content item",
}, []string{"type"})

var itemProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moddesk_item_processed",
	Help: "Number of content items processed",
}, []string{"type"})

var itemErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moddesk_item_errors",
	Help: "Number of content items which failed processing",
}, []string{"type"})

var ruleSkipCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moddesk_rule_skips",
	Help: "Number of rule evaluations skipped by exemptions, cooldowns, or trigger ceilings",
}, []string{"reason"})

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moddesk_actions",
	Help: "Number of moderation actions executed successfully",
}, []string{"action"})

var actionErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moddesk_action_errors",
	Help: "Number of moderation actions which failed",
}, []string{"action"})

var circuitBreakCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moddesk_circuit_breaks",
	Help: "Number of actions skipped because the daily quota was exhausted",
}, []string{"action"})

var roleFetches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moddesk_role_fetches",
	Help: "Number of user role reads from the user store (cache misses)",
})
