package collab

import (
	"time"
)

type ContentRecord struct {
	ID             string `gorm:"primaryKey"`
	Type           string `gorm:"index;not null"`
	OwnerID        string `gorm:"index;not null"`
	Title          string
	Body           string
	Category       string
	Tags           []string           `gorm:"serializer:json"`
	Links          []string           `gorm:"serializer:json"`
	SentimentScore *float64
	ImageLabels    map[string]float64 `gorm:"serializer:json"`
	CreatedAt      time.Time          `gorm:"not null"`
	UpdatedAt      time.Time
	RemovedAt      *time.Time
	RemovedReason  *string
}

type UserAccount struct {
	ID    string   `gorm:"primaryKey"`
	Roles []string `gorm:"serializer:json"`
	// nil if not banned; zero-duration bans set BannedPermanent instead
	BannedUntil     *time.Time
	BannedPermanent bool
	BanReason       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (u *UserAccount) Banned(now time.Time) bool {
	if u.BannedPermanent {
		return true
	}
	return u.BannedUntil != nil && u.BannedUntil.After(now)
}
