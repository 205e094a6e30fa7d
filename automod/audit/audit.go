package audit

import (
	"context"
	"sort"
	"time"
)

type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Outcome of a single action within a record.
type ActionEntry struct {
	Action string `json:"action"`
	// Empty on success.
	Error string `json:"error,omitempty"`
}

// Immutable log entry, one per rule match.
type Record struct {
	ID        string            `json:"id"`
	RuleID    string            `json:"ruleId"`
	RuleName  string            `json:"ruleName"`
	TargetRef string            `json:"targetRef"`
	OwnerID   string            `json:"ownerId"`
	Actions   []string          `json:"actions"`
	Status    Status            `json:"status"`
	Results   []ActionEntry     `json:"results"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

type DayBucket struct {
	// UTC date, formatted as YYYY-MM-DD
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type Statistics struct {
	// Empty when aggregated over all rules.
	RuleID       string        `json:"ruleId,omitempty"`
	Window       time.Duration `json:"window"`
	TriggerCount int           `json:"triggerCount"`
	SuccessCount int           `json:"successCount"`
	FailureCount int           `json:"failureCount"`
	// SuccessCount / TriggerCount; zero when there were no triggers.
	SuccessRate float64     `json:"successRate"`
	Histogram   []DayBucket `json:"histogram"`
}

type ListFilter struct {
	RuleID    string
	TargetRef string
	Status    Status
	Limit     int
}

type Recorder interface {
	// Appends the record. Assigns ID and CreatedAt if unset.
	Record(ctx context.Context, rec *Record) error
	// Aggregates over records created within the window ending now. An empty ruleID aggregates all rules.
	Statistics(ctx context.Context, ruleID string, window time.Duration) (*Statistics, error)
	// Time of the most recent record for this rule and target. The bool is false if there is none.
	LastTriggered(ctx context.Context, ruleID, targetRef string) (time.Time, bool, error)
	// Number of records for the rule created at or after since.
	CountSince(ctx context.Context, ruleID string, since time.Time) (int, error)
	// Most recent records first.
	List(ctx context.Context, filter ListFilter) ([]Record, error)
}

const DefaultListLimit = 100

// Pure aggregation over the records that fall in the window. Shared by all Recorder implementations so that success rate is always recomputed from the raw log.
func computeStatistics(ruleID string, window time.Duration, now time.Time, recs []Record) *Statistics {
	now = now.UTC()
	start := now.Add(-window)
	stats := &Statistics{
		RuleID:    ruleID,
		Window:    window,
		Histogram: []DayBucket{},
	}

	days := map[string]int{}
	for _, r := range recs {
		if ruleID != "" && r.RuleID != ruleID {
			continue
		}
		if r.CreatedAt.Before(start) || r.CreatedAt.After(now) {
			continue
		}
		stats.TriggerCount++
		if r.Status == StatusCompleted {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
		days[r.CreatedAt.UTC().Format(time.DateOnly)]++
	}
	if stats.TriggerCount > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TriggerCount)
	}

	// zero-filled, one bucket per UTC day in the window
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(now) {
		k := day.Format(time.DateOnly)
		stats.Histogram = append(stats.Histogram, DayBucket{Day: k, Count: days[k]})
		day = day.AddDate(0, 0, 1)
	}
	return stats
}

func sortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
