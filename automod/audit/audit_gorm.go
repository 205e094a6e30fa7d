package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ModerationActionRecord struct {
	ID        string            `gorm:"primaryKey"`
	RuleID    string            `gorm:"index:idx_modaction_rule_created;not null"`
	RuleName  string            `gorm:"not null"`
	TargetRef string            `gorm:"index:idx_modaction_target;not null"`
	OwnerID   string            `gorm:"index"`
	Actions   []string          `gorm:"serializer:json"`
	Status    string            `gorm:"not null"`
	Results   []ActionEntry     `gorm:"serializer:json"`
	Metadata  map[string]string `gorm:"serializer:json"`
	CreatedAt time.Time         `gorm:"index:idx_modaction_rule_created;not null"`
}

func (ModerationActionRecord) TableName() string {
	return "moderation_action_records"
}

func (row *ModerationActionRecord) toRecord() Record {
	return Record{
		ID:        row.ID,
		RuleID:    row.RuleID,
		RuleName:  row.RuleName,
		TargetRef: row.TargetRef,
		OwnerID:   row.OwnerID,
		Actions:   row.Actions,
		Status:    Status(row.Status),
		Results:   row.Results,
		Metadata:  row.Metadata,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

// Recorder backed by a relational database. Rows are only ever inserted.
type GormRecorder struct {
	db  *gorm.DB
	Now func() time.Time
}

var _ Recorder = (*GormRecorder)(nil)

func NewGormRecorder(db *gorm.DB) (*GormRecorder, error) {
	if err := db.AutoMigrate(&ModerationActionRecord{}); err != nil {
		return nil, fmt.Errorf("migrating action records: %w", err)
	}
	return &GormRecorder{
		db:  db,
		Now: time.Now,
	}, nil
}

func (r *GormRecorder) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

func (r *GormRecorder) Record(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	row := ModerationActionRecord{
		ID:        rec.ID,
		RuleID:    rec.RuleID,
		RuleName:  rec.RuleName,
		TargetRef: rec.TargetRef,
		OwnerID:   rec.OwnerID,
		Actions:   rec.Actions,
		Status:    string(rec.Status),
		Results:   rec.Results,
		Metadata:  rec.Metadata,
		CreatedAt: rec.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *GormRecorder) Statistics(ctx context.Context, ruleID string, window time.Duration) (*Statistics, error) {
	now := r.now()
	q := r.db.WithContext(ctx).Model(&ModerationActionRecord{}).
		Select("rule_id", "status", "created_at").
		Where("created_at >= ? AND created_at <= ?", now.Add(-window), now)
	if ruleID != "" {
		q = q.Where("rule_id = ?", ruleID)
	}
	var rows []ModerationActionRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	recs := make([]Record, len(rows))
	for i := range rows {
		recs[i] = rows[i].toRecord()
	}
	return computeStatistics(ruleID, window, now, recs), nil
}

func (r *GormRecorder) LastTriggered(ctx context.Context, ruleID, targetRef string) (time.Time, bool, error) {
	var rows []ModerationActionRecord
	err := r.db.WithContext(ctx).
		Select("created_at").
		Where("rule_id = ? AND target_ref = ?", ruleID, targetRef).
		Order("created_at desc").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return time.Time{}, false, err
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return rows[0].CreatedAt.UTC(), true, nil
}

func (r *GormRecorder) CountSince(ctx context.Context, ruleID string, since time.Time) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&ModerationActionRecord{}).
		Where("rule_id = ? AND created_at >= ?", ruleID, since.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *GormRecorder) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := r.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if filter.RuleID != "" {
		q = q.Where("rule_id = ?", filter.RuleID)
	}
	if filter.TargetRef != "" {
		q = q.Where("target_ref = ?", filter.TargetRef)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	var rows []ModerationActionRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i := range rows {
		out[i] = rows[i].toRecord()
	}
	return out, nil
}
