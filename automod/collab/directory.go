// Default relational implementations of the content and user collaborators, for running the moderation service standalone.
package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/socialdesk/moddesk/automod/engine"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Content and user records in the same database as the rest of the service. Implements both engine.ContentStore and engine.UserStore.
type GormDirectory struct {
	db *gorm.DB
}

var _ engine.ContentStore = (*GormDirectory)(nil)
var _ engine.UserStore = (*GormDirectory)(nil)

func NewGormDirectory(db *gorm.DB) (*GormDirectory, error) {
	if err := db.AutoMigrate(&ContentRecord{}, &UserAccount{}); err != nil {
		return nil, fmt.Errorf("migrating directory tables: %w", err)
	}
	return &GormDirectory{db: db}, nil
}

// Fields of a content record which are not part of engine.ContentItem.
type ContentMeta struct {
	Title    string   `json:"title,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Inserts or replaces a content record. A previously removed record is restored.
func (d *GormDirectory) PutContent(ctx context.Context, item *engine.ContentItem, meta ContentMeta) error {
	if item.ID == "" || item.OwnerID == "" {
		return engine.NewValidationError("content id and ownerId are required")
	}
	if !item.Type.Valid() {
		return engine.NewValidationError(fmt.Sprintf("unknown content type %q", item.Type))
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	row := ContentRecord{
		ID:             item.ID,
		Type:           string(item.Type),
		OwnerID:        item.OwnerID,
		Title:          meta.Title,
		Body:           item.Body,
		Category:       meta.Category,
		Tags:           meta.Tags,
		Links:          item.Links,
		SentimentScore: item.SentimentScore,
		ImageLabels:    item.ImageLabels,
		CreatedAt:      item.CreatedAt,
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (d *GormDirectory) getContent(ctx context.Context, id string) (*ContentRecord, error) {
	var row ContentRecord
	err := d.db.WithContext(ctx).Where("id = ? AND removed_at IS NULL", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("content item %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Removed content is reported as not found.
func (d *GormDirectory) GetContentItem(ctx context.Context, id string) (*engine.ContentItem, error) {
	row, err := d.getContent(ctx, id)
	if err != nil {
		return nil, err
	}
	return &engine.ContentItem{
		ID:             row.ID,
		Type:           engine.ContentType(row.Type),
		OwnerID:        row.OwnerID,
		Body:           row.Body,
		Links:          row.Links,
		SentimentScore: row.SentimentScore,
		ImageLabels:    row.ImageLabels,
		CreatedAt:      row.CreatedAt.UTC(),
	}, nil
}

func (d *GormDirectory) GetContentMeta(ctx context.Context, id string) (*ContentMeta, error) {
	row, err := d.getContent(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ContentMeta{Title: row.Title, Category: row.Category, Tags: row.Tags}, nil
}

func (d *GormDirectory) ApplyDelta(ctx context.Context, id string, delta engine.ContentDelta) error {
	row, err := d.getContent(ctx, id)
	if err != nil {
		return err
	}
	if delta.Title != nil {
		row.Title = *delta.Title
	}
	if delta.Content != nil {
		row.Body = *delta.Content
	}
	if delta.Category != nil {
		row.Category = *delta.Category
	}
	if delta.Tags != nil {
		row.Tags = *delta.Tags
	}
	return d.db.WithContext(ctx).Save(row).Error
}

// Soft-deletes the content record.
func (d *GormDirectory) RemoveContent(ctx context.Context, id string, reason string) error {
	now := time.Now().UTC()
	res := d.db.WithContext(ctx).Model(&ContentRecord{}).
		Where("id = ? AND removed_at IS NULL", id).
		Updates(map[string]any{"removed_at": now, "removed_reason": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("content item %s: %w", id, engine.ErrNotFound)
	}
	return nil
}

// Creates the user if needed, and replaces their roles.
func (d *GormDirectory) PutUser(ctx context.Context, userID string, roles []string) error {
	if userID == "" {
		return engine.NewValidationError("user id is required")
	}
	if roles == nil {
		roles = []string{}
	}
	row := UserAccount{ID: userID, Roles: roles}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"roles", "updated_at"}),
	}).Create(&row).Error
}

func (d *GormDirectory) getUser(ctx context.Context, userID string) (*UserAccount, error) {
	var row UserAccount
	err := d.db.WithContext(ctx).Where("id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *GormDirectory) GetUser(ctx context.Context, userID string) (*UserAccount, error) {
	return d.getUser(ctx, userID)
}

func (d *GormDirectory) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	row, err := d.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return row.Roles, nil
}

func (d *GormDirectory) BanUser(ctx context.Context, userID string, reason string, duration time.Duration) error {
	row, err := d.getUser(ctx, userID)
	if err != nil {
		return err
	}
	row.BanReason = &reason
	if duration <= 0 {
		row.BannedPermanent = true
		row.BannedUntil = nil
	} else {
		until := time.Now().UTC().Add(duration)
		// an existing longer ban is kept
		if row.BannedUntil == nil || until.After(*row.BannedUntil) {
			row.BannedUntil = &until
		}
	}
	return d.db.WithContext(ctx).Save(row).Error
}
