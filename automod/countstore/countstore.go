package countstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

// Counters keyed by namespace ("name") and value ("val"), bucketed by wall-clock period.
//
// Used by the moderation engine for per-owner content rate conditions and for daily action quotas.
type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	// Increments all period buckets for the counter.
	Increment(ctx context.Context, name, val string) error
	// Increments only the indicated period bucket.
	IncrementPeriod(ctx context.Context, name, val, period string) error
	GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error)
	IncrementDistinct(ctx context.Context, name, bucket, val string) error
}

// Returns true if the period string is one of the known bucket periods.
func ValidPeriod(period string) bool {
	switch period {
	case PeriodTotal, PeriodDay, PeriodHour:
		return true
	}
	return false
}

func periodBucket(name, val, period string) string {
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%s/%s", name, val)
	case PeriodDay:
		t := time.Now().UTC().Format(time.DateOnly)
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	case PeriodHour:
		t := time.Now().UTC().Format(time.RFC3339)[0:13]
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	default:
		slog.Warn("unhandled counter period", "period", period)
		return fmt.Sprintf("%s/%s", name, val)
	}
}
