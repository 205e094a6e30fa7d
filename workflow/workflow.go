// Editorial approval workflow for proposed content edits.
//
// A workflow moves pending → approved → completed, or pending → rejected. Rejected and completed are terminal. Only users holding a reviewer role may approve, reject, or assign. Completing a workflow applies the proposed delta to the content item.
package workflow

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/socialdesk/moddesk/automod/engine"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

var (
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrNotFound          = engine.ErrNotFound
	ErrForbidden         = engine.ErrForbidden
	ErrValidation        = engine.ErrValidation
)

var edges = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Returns an error wrapping ErrInvalidTransition unless from → to is an edge of the state machine.
func Transition(from, to Status) error {
	if slices.Contains(edges[from], to) {
		return nil
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
}

type Workflow struct {
	ID            string              `json:"id"`
	ContentID     string              `json:"contentId"`
	Status        Status              `json:"status"`
	RequesterID   string              `json:"requesterId"`
	AssigneeID    *string             `json:"assigneeId,omitempty"`
	ReviewerID    *string             `json:"reviewerId,omitempty"`
	Changes       engine.ContentDelta `json:"changes"`
	ReviewComment string              `json:"reviewComment,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	ReviewedAt    *time.Time          `json:"reviewedAt,omitempty"`
	CompletedAt   *time.Time          `json:"completedAt,omitempty"`
}

// Fields written along with a status change.
type StatusUpdate struct {
	To          Status
	ReviewerID  *string
	Comment     *string
	ReviewedAt  *time.Time
	CompletedAt *time.Time
}

func (u StatusUpdate) apply(wf *Workflow) {
	wf.Status = u.To
	if u.ReviewerID != nil {
		wf.ReviewerID = u.ReviewerID
	}
	if u.Comment != nil {
		wf.ReviewComment = *u.Comment
	}
	if u.ReviewedAt != nil {
		wf.ReviewedAt = u.ReviewedAt
	}
	if u.CompletedAt != nil {
		wf.CompletedAt = u.CompletedAt
	}
}

type ListFilter struct {
	Status      Status
	ContentID   string
	RequesterID string
	AssigneeID  string
	Limit       int
}

const DefaultListLimit = 100
