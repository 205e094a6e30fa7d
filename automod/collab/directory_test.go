package collab

import (
	"context"
	"testing"
	"time"

	"github.com/socialdesk/moddesk/automod/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testDirectory(t *testing.T) *GormDirectory {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	d, err := NewGormDirectory(db)
	require.NoError(t, err)
	return d
}

func TestDirectoryContent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := testDirectory(t)

	score := -0.4
	item := &engine.ContentItem{
		ID:             "p1",
		Type:           engine.ContentPost,
		OwnerID:        "u1",
		Body:           "hello world",
		Links:          []string{"https://example.com"},
		SentimentScore: &score,
	}
	require.NoError(t, d.PutContent(ctx, item, ContentMeta{Title: "Hello", Tags: []string{"a"}}))
	assert.ErrorIs(d.PutContent(ctx, &engine.ContentItem{ID: "x", Type: "video", OwnerID: "u1"}, ContentMeta{}), engine.ErrValidation)

	got, err := d.GetContentItem(ctx, "p1")
	require.NoError(t, err)
	assert.Equal("hello world", got.Body)
	assert.Equal([]string{"https://example.com"}, got.Links)
	require.NotNil(t, got.SentimentScore)
	assert.Equal(-0.4, *got.SentimentScore)

	title := "Edited"
	tags := []string{"b", "c"}
	require.NoError(t, d.ApplyDelta(ctx, "p1", engine.ContentDelta{Title: &title, Tags: &tags}))
	meta, err := d.GetContentMeta(ctx, "p1")
	require.NoError(t, err)
	assert.Equal("Edited", meta.Title)
	assert.Equal([]string{"b", "c"}, meta.Tags)

	require.NoError(t, d.RemoveContent(ctx, "p1", "spam"))
	_, err = d.GetContentItem(ctx, "p1")
	assert.ErrorIs(err, engine.ErrNotFound)
	assert.ErrorIs(d.RemoveContent(ctx, "p1", "again"), engine.ErrNotFound)
	assert.ErrorIs(d.ApplyDelta(ctx, "missing", engine.ContentDelta{Title: &title}), engine.ErrNotFound)
}

func TestDirectoryUsers(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := testDirectory(t)

	_, err := d.GetUserRoles(ctx, "u1")
	assert.ErrorIs(err, engine.ErrNotFound)

	require.NoError(t, d.PutUser(ctx, "u1", []string{"editor"}))
	require.NoError(t, d.PutUser(ctx, "u1", []string{"editor", "moderator"}))
	roles, err := d.GetUserRoles(ctx, "u1")
	require.NoError(t, err)
	assert.Equal([]string{"editor", "moderator"}, roles)

	require.NoError(t, d.BanUser(ctx, "u1", "spam", time.Hour))
	u, err := d.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(u.Banned(time.Now()))
	assert.False(u.Banned(time.Now().Add(2 * time.Hour)))

	require.NoError(t, d.BanUser(ctx, "u1", "repeat", 0))
	u, err = d.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(u.Banned(time.Now().Add(24 * 365 * time.Hour)))

	assert.ErrorIs(d.BanUser(ctx, "ghost", "x", 0), engine.ErrNotFound)
}
