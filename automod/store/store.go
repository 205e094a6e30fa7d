// Persistent storage of moderation rule definitions.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/socialdesk/moddesk/automod/engine"
	"gorm.io/gorm"
)

type ModerationRule struct {
	ID                 string               `gorm:"primaryKey"`
	Name               string               `gorm:"not null"`
	Description        string
	Priority           int                  `gorm:"index;not null"`
	TriggerType        string               `gorm:"not null"`
	TargetTypes        []engine.ContentType `gorm:"serializer:json"`
	Conditions         engine.ConditionList `gorm:"serializer:json"`
	Actions            engine.ActionList    `gorm:"serializer:json"`
	IsActive           bool                 `gorm:"index"`
	CooldownPeriod     int
	MaxTriggersPerHour int
	Whitelist          []string `gorm:"serializer:json"`
	Blacklist          []string `gorm:"serializer:json"`
	ExemptRoles        []string `gorm:"serializer:json"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (row *ModerationRule) setDraft(d engine.RuleDraft) {
	row.Name = d.Name
	row.Description = d.Description
	row.Priority = d.Priority
	row.TriggerType = string(d.TriggerType)
	row.TargetTypes = d.TargetTypes
	row.Conditions = d.Conditions
	row.Actions = d.Actions
	row.IsActive = d.IsActive
	row.CooldownPeriod = d.CooldownPeriod
	row.MaxTriggersPerHour = d.MaxTriggersPerHour
	row.Whitelist = d.Whitelist
	row.Blacklist = d.Blacklist
	row.ExemptRoles = d.ExemptRoles
}

func (row *ModerationRule) toRule() *engine.Rule {
	return &engine.Rule{
		ID: row.ID,
		RuleDraft: engine.RuleDraft{
			Name:               row.Name,
			Description:        row.Description,
			Priority:           row.Priority,
			TriggerType:        engine.TriggerType(row.TriggerType),
			TargetTypes:        row.TargetTypes,
			Conditions:         row.Conditions,
			Actions:            row.Actions,
			IsActive:           row.IsActive,
			CooldownPeriod:     row.CooldownPeriod,
			MaxTriggersPerHour: row.MaxTriggersPerHour,
			Whitelist:          row.Whitelist,
			Blacklist:          row.Blacklist,
			ExemptRoles:        row.ExemptRoles,
		},
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

// CRUD over rule definitions. Rules are validated on every create and update, so stored rules are always well-formed.
type RuleStore struct {
	db *gorm.DB
}

var _ engine.RuleSource = (*RuleStore)(nil)

func NewRuleStore(db *gorm.DB) (*RuleStore, error) {
	if err := db.AutoMigrate(&ModerationRule{}); err != nil {
		return nil, fmt.Errorf("migrating rules table: %w", err)
	}
	return &RuleStore{db: db}, nil
}

func (s *RuleStore) Create(ctx context.Context, draft engine.RuleDraft) (*engine.Rule, error) {
	if err := engine.ValidateRule(&draft).Err(); err != nil {
		return nil, err
	}
	row := ModerationRule{ID: uuid.NewString()}
	row.setDraft(draft)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("creating rule: %w", err)
	}
	return row.toRule(), nil
}

func (s *RuleStore) get(ctx context.Context, id string) (*ModerationRule, error) {
	var row ModerationRule
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("rule %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *RuleStore) Get(ctx context.Context, id string) (*engine.Rule, error) {
	row, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return row.toRule(), nil
}

// Replaces the editable fields of an existing rule.
func (s *RuleStore) Update(ctx context.Context, id string, draft engine.RuleDraft) (*engine.Rule, error) {
	if err := engine.ValidateRule(&draft).Err(); err != nil {
		return nil, err
	}
	row, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	row.setDraft(draft)
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, fmt.Errorf("updating rule: %w", err)
	}
	return row.toRule(), nil
}

func (s *RuleStore) SetActive(ctx context.Context, id string, active bool) (*engine.Rule, error) {
	row, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(row).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("updating rule: %w", err)
	}
	row.IsActive = active
	return row.toRule(), nil
}

func (s *RuleStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&ModerationRule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("rule %s: %w", id, engine.ErrNotFound)
	}
	return nil
}

// All rules, in evaluation order.
func (s *RuleStore) List(ctx context.Context) ([]*engine.Rule, error) {
	return s.list(ctx, s.db.WithContext(ctx))
}

func (s *RuleStore) ActiveRules(ctx context.Context) ([]*engine.Rule, error) {
	return s.list(ctx, s.db.WithContext(ctx).Where("is_active = ?", true))
}

func (s *RuleStore) list(ctx context.Context, q *gorm.DB) ([]*engine.Rule, error) {
	var rows []ModerationRule
	if err := q.Order("priority desc").Order("created_at asc").Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*engine.Rule, len(rows))
	for i := range rows {
		out[i] = rows[i].toRule()
	}
	// stored timestamps can lose precision; keep the in-process ordering authoritative
	engine.SortRules(out)
	return out, nil
}
