package engine

import (
	"fmt"
	"slices"
	"time"
)

type ContentType string

const (
	ContentPost    ContentType = "post"
	ContentComment ContentType = "comment"
	ContentUser    ContentType = "user"
	ContentMessage ContentType = "message"
	ContentProfile ContentType = "profile"
)

var ContentTypes = []ContentType{
	ContentPost,
	ContentComment,
	ContentUser,
	ContentMessage,
	ContentProfile,
}

func (t ContentType) Valid() bool {
	return slices.Contains(ContentTypes, t)
}

// A piece of content (or a user account) being evaluated. Owned and mutated by the ContentStore; the engine only reads it.
type ContentItem struct {
	ID      string      `json:"id"`
	Type    ContentType `json:"type"`
	OwnerID string      `json:"ownerId"`
	Body    string      `json:"body"`
	// Explicit link attachments. URLs found in Body are extracted separately.
	Links []string `json:"links,omitempty"`
	// Output of an upstream sentiment model, in the range [-1, 1]. Nil if not scored.
	SentimentScore *float64 `json:"sentimentScore,omitempty"`
	// Output of an upstream image classifier: label to confidence in [0, 1].
	ImageLabels map[string]float64 `json:"imageLabels,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// Stable reference to the item, used as the target of moderation records, cooldowns, and flags.
func (c *ContentItem) TargetRef() string {
	return fmt.Sprintf("%s/%s", c.Type, c.ID)
}

// Proposed edits to a content item. Nil fields are left unchanged when applied.
type ContentDelta struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Category *string   `json:"category,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
}

func (d ContentDelta) IsEmpty() bool {
	return d.Title == nil && d.Content == nil && d.Category == nil && d.Tags == nil
}
