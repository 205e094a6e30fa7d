package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemRecorder struct {
	mu      sync.RWMutex
	records []Record
	// overridable for tests
	Now func() time.Time
}

var _ Recorder = (*MemRecorder)(nil)

func NewMemRecorder() *MemRecorder {
	return &MemRecorder{
		Now: time.Now,
	}
}

func (r *MemRecorder) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

func (r *MemRecorder) Record(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

func (r *MemRecorder) Statistics(ctx context.Context, ruleID string, window time.Duration) (*Statistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return computeStatistics(ruleID, window, r.now(), r.records), nil
}

func (r *MemRecorder) LastTriggered(ctx context.Context, ruleID, targetRef string) (time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last time.Time
	found := false
	for _, rec := range r.records {
		if rec.RuleID != ruleID || rec.TargetRef != targetRef {
			continue
		}
		if !found || rec.CreatedAt.After(last) {
			last = rec.CreatedAt
			found = true
		}
	}
	return last, found, nil
}

func (r *MemRecorder) CountSince(ctx context.Context, ruleID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rec := range r.records {
		if rec.RuleID == ruleID && !rec.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemRecorder) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	r.mu.RLock()
	out := []Record{}
	for _, rec := range r.records {
		if filter.RuleID != "" && rec.RuleID != filter.RuleID {
			continue
		}
		if filter.TargetRef != "" && rec.TargetRef != filter.TargetRef {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sortNewestFirst(out)
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
