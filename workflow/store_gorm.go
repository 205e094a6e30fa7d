package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/socialdesk/moddesk/automod/engine"
	"gorm.io/gorm"
)

type ContentWorkflow struct {
	ID            string              `gorm:"primaryKey"`
	ContentID     string              `gorm:"index;not null"`
	Status        string              `gorm:"index;not null"`
	RequesterID   string              `gorm:"index;not null"`
	AssigneeID    *string             `gorm:"index"`
	ReviewerID    *string
	Changes       engine.ContentDelta `gorm:"serializer:json"`
	ReviewComment string
	CreatedAt     time.Time `gorm:"index;not null"`
	UpdatedAt     time.Time
	ReviewedAt    *time.Time
	CompletedAt   *time.Time
}

func (row *ContentWorkflow) toWorkflow() *Workflow {
	wf := &Workflow{
		ID:            row.ID,
		ContentID:     row.ContentID,
		Status:        Status(row.Status),
		RequesterID:   row.RequesterID,
		AssigneeID:    row.AssigneeID,
		ReviewerID:    row.ReviewerID,
		Changes:       row.Changes,
		ReviewComment: row.ReviewComment,
		CreatedAt:     row.CreatedAt.UTC(),
		ReviewedAt:    row.ReviewedAt,
		CompletedAt:   row.CompletedAt,
	}
	return wf
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ContentWorkflow{}); err != nil {
		return nil, fmt.Errorf("migrating workflows table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, wf *Workflow) error {
	row := ContentWorkflow{
		ID:            wf.ID,
		ContentID:     wf.ContentID,
		Status:        string(wf.Status),
		RequesterID:   wf.RequesterID,
		AssigneeID:    wf.AssigneeID,
		ReviewerID:    wf.ReviewerID,
		Changes:       wf.Changes,
		ReviewComment: wf.ReviewComment,
		CreatedAt:     wf.CreatedAt,
		ReviewedAt:    wf.ReviewedAt,
		CompletedAt:   wf.CompletedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) get(ctx context.Context, id string) (*ContentWorkflow, error) {
	var row ContentWorkflow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Workflow, error) {
	row, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return row.toWorkflow(), nil
}

func (s *GormStore) List(ctx context.Context, filter ListFilter) ([]*Workflow, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := s.db.WithContext(ctx).Order("created_at desc").Order("id asc").Limit(limit)
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.ContentID != "" {
		q = q.Where("content_id = ?", filter.ContentID)
	}
	if filter.RequesterID != "" {
		q = q.Where("requester_id = ?", filter.RequesterID)
	}
	if filter.AssigneeID != "" {
		q = q.Where("assignee_id = ?", filter.AssigneeID)
	}
	var rows []ContentWorkflow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*Workflow, len(rows))
	for i := range rows {
		out[i] = rows[i].toWorkflow()
	}
	return out, nil
}

// Distinguishes a lost compare-and-swap from a missing workflow.
func (s *GormStore) casFailed(ctx context.Context, id string, expected Status) error {
	row, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: workflow %s is %s, not %s", ErrInvalidTransition, id, row.Status, expected)
}

func (s *GormStore) UpdateStatus(ctx context.Context, id string, from Status, upd StatusUpdate) (*Workflow, error) {
	fields := map[string]any{
		"status": string(upd.To),
	}
	if upd.ReviewerID != nil {
		fields["reviewer_id"] = *upd.ReviewerID
	}
	if upd.Comment != nil {
		fields["review_comment"] = *upd.Comment
	}
	if upd.ReviewedAt != nil {
		fields["reviewed_at"] = upd.ReviewedAt.UTC()
	}
	if upd.CompletedAt != nil {
		fields["completed_at"] = upd.CompletedAt.UTC()
	}
	res := s.db.WithContext(ctx).Model(&ContentWorkflow{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.casFailed(ctx, id, from)
	}
	return s.Get(ctx, id)
}

func (s *GormStore) SetAssignee(ctx context.Context, id string, assigneeID string) (*Workflow, error) {
	res := s.db.WithContext(ctx).Model(&ContentWorkflow{}).
		Where("id = ? AND status = ?", id, string(StatusPending)).
		Update("assignee_id", assigneeID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.casFailed(ctx, id, StatusPending)
	}
	return s.Get(ctx, id)
}
