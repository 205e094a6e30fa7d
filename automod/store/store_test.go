package store

import (
	"context"
	"testing"

	"github.com/socialdesk/moddesk/automod/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testStore(t *testing.T) *RuleStore {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	s, err := NewRuleStore(db)
	require.NoError(t, err)
	return s
}

func draft(name string, priority int) engine.RuleDraft {
	return engine.RuleDraft{
		Name:        name,
		Priority:    priority,
		TriggerType: engine.TriggerKeywordMatch,
		TargetTypes: []engine.ContentType{engine.ContentPost},
		Conditions:  engine.ConditionList{engine.KeywordCondition{Keywords: []string{"spam"}}},
		Actions: engine.ActionList{
			engine.FlagAction{Flag: "spam"},
			engine.NotifyAction{Target: engine.NotifyModerators, Message: "{rule} fired"},
		},
		IsActive:    true,
		ExemptRoles: []string{"admin"},
	}
}

func TestRuleStoreCRUD(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	r, err := s.Create(ctx, draft("spam", 5))
	require.NoError(t, err)
	assert.NotEmpty(r.ID)
	assert.False(r.CreatedAt.IsZero())

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal("spam", got.Name)
	assert.Equal(r.Conditions, got.Conditions)
	assert.Equal(r.Actions, got.Actions)
	assert.Equal([]string{"admin"}, got.ExemptRoles)

	bad := draft("broken", 1)
	bad.Conditions = nil
	_, err = s.Create(ctx, bad)
	assert.ErrorIs(err, engine.ErrValidation)
	_, err = s.Update(ctx, r.ID, bad)
	assert.ErrorIs(err, engine.ErrValidation)

	upd := draft("spam v2", 7)
	upd.CooldownPeriod = 300
	got, err = s.Update(ctx, r.ID, upd)
	require.NoError(t, err)
	assert.Equal("spam v2", got.Name)
	assert.Equal(300, got.CooldownPeriod)

	got, err = s.SetActive(ctx, r.ID, false)
	require.NoError(t, err)
	assert.False(got.IsActive)
	got, err = s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.False(got.IsActive)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(err, engine.ErrNotFound)
	_, err = s.Update(ctx, "nope", draft("x", 1))
	assert.ErrorIs(err, engine.ErrNotFound)

	assert.NoError(s.Delete(ctx, r.ID))
	assert.ErrorIs(s.Delete(ctx, r.ID), engine.ErrNotFound)
}

func TestRuleStoreOrdering(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	low, err := s.Create(ctx, draft("low", 5))
	require.NoError(t, err)
	high, err := s.Create(ctx, draft("high", 10))
	require.NoError(t, err)
	off := draft("off", 20)
	off.IsActive = false
	_, err = s.Create(ctx, off)
	require.NoError(t, err)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(all, 3)
	assert.Equal("off", all[0].Name)

	active, err := s.ActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(high.ID, active[0].ID)
	assert.Equal(low.ID, active[1].ID)
}
