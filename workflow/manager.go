package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/socialdesk/moddesk/automod/engine"
)

var DefaultReviewerRoles = []string{"admin", "moderator", "editor"}

// Looks up the roles of the acting user. Satisfied by engine.UserStore, and by *engine.Engine (which caches).
type RoleSource interface {
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
}

type Manager struct {
	Store   Store
	Roles   RoleSource
	Content engine.ContentStore
	Logger  *slog.Logger
	// roles allowed to assign, approve, and reject; DefaultReviewerRoles if empty
	ReviewerRoles []string
	Clock         func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Clock != nil {
		return m.Clock().UTC()
	}
	return time.Now().UTC()
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Unknown users are not reviewers.
func (m *Manager) IsReviewer(ctx context.Context, userID string) (bool, error) {
	roles, err := m.Roles.GetUserRoles(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	allowed := m.ReviewerRoles
	if len(allowed) == 0 {
		allowed = DefaultReviewerRoles
	}
	for _, r := range roles {
		if slices.Contains(allowed, r) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) requireReviewer(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: acting user is required", ErrForbidden)
	}
	ok, err := m.IsReviewer(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking reviewer roles: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s does not have a reviewer role", ErrForbidden, userID)
	}
	return nil
}

// Opens a pending workflow proposing changes to an existing content item.
func (m *Manager) Submit(ctx context.Context, requesterID, contentID string, changes engine.ContentDelta) (*Workflow, error) {
	errs := []string{}
	if requesterID == "" {
		errs = append(errs, "requesterId is required")
	}
	if contentID == "" {
		errs = append(errs, "contentId is required")
	}
	if changes.IsEmpty() {
		errs = append(errs, "changes must set at least one field")
	}
	if len(errs) > 0 {
		return nil, engine.NewValidationError(errs...)
	}
	if _, err := m.Content.GetContentItem(ctx, contentID); err != nil {
		return nil, err
	}

	wf := &Workflow{
		ID:          uuid.NewString(),
		ContentID:   contentID,
		Status:      StatusPending,
		RequesterID: requesterID,
		Changes:     changes,
		CreatedAt:   m.now(),
	}
	if err := m.Store.Create(ctx, wf); err != nil {
		return nil, fmt.Errorf("creating workflow: %w", err)
	}
	transitionCount.WithLabelValues(string(StatusPending)).Inc()
	m.logger().Info("workflow submitted", "workflow", wf.ID, "content", contentID, "requester", requesterID)
	return wf, nil
}

// Assigns a pending workflow to a reviewer. Both the acting user and the assignee must hold a reviewer role.
func (m *Manager) Assign(ctx context.Context, actorID, id, assigneeID string) (*Workflow, error) {
	if err := m.requireReviewer(ctx, actorID); err != nil {
		return nil, err
	}
	if assigneeID == "" {
		return nil, engine.NewValidationError("assigneeId is required")
	}
	ok, err := m.IsReviewer(ctx, assigneeID)
	if err != nil {
		return nil, fmt.Errorf("checking assignee roles: %w", err)
	}
	if !ok {
		return nil, engine.NewValidationError(fmt.Sprintf("assignee %s does not have a reviewer role", assigneeID))
	}
	wf, err := m.Store.SetAssignee(ctx, id, assigneeID)
	if err != nil {
		return nil, err
	}
	m.logger().Info("workflow assigned", "workflow", id, "assignee", assigneeID, "actor", actorID)
	return wf, nil
}

func (m *Manager) review(ctx context.Context, reviewerID, id string, to Status, comment string) (*Workflow, error) {
	if err := m.requireReviewer(ctx, reviewerID); err != nil {
		return nil, err
	}
	current, err := m.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Transition(current.Status, to); err != nil {
		return nil, err
	}
	if to == StatusRejected && strings.TrimSpace(comment) == "" {
		return nil, engine.NewValidationError("a comment is required when rejecting")
	}
	now := m.now()
	wf, err := m.Store.UpdateStatus(ctx, id, current.Status, StatusUpdate{
		To:         to,
		ReviewerID: &reviewerID,
		Comment:    &comment,
		ReviewedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	transitionCount.WithLabelValues(string(to)).Inc()
	m.logger().Info("workflow reviewed", "workflow", id, "status", to, "reviewer", reviewerID)
	return wf, nil
}

func (m *Manager) Approve(ctx context.Context, reviewerID, id, comment string) (*Workflow, error) {
	return m.review(ctx, reviewerID, id, StatusApproved, comment)
}

// Rejections must carry a comment explaining the decision to the requester.
func (m *Manager) Reject(ctx context.Context, reviewerID, id, comment string) (*Workflow, error) {
	return m.review(ctx, reviewerID, id, StatusRejected, comment)
}

// Applies the approved changes to the content item, then marks the workflow completed. May be called by the requester or any reviewer.
//
// If the content update fails, the workflow stays approved and Complete can be retried.
func (m *Manager) Complete(ctx context.Context, actorID, id string) (*Workflow, error) {
	current, err := m.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != current.RequesterID {
		if err := m.requireReviewer(ctx, actorID); err != nil {
			return nil, err
		}
	}
	if err := Transition(current.Status, StatusCompleted); err != nil {
		return nil, err
	}
	if err := m.Content.ApplyDelta(ctx, current.ContentID, current.Changes); err != nil {
		return nil, fmt.Errorf("applying workflow changes: %w", err)
	}
	now := m.now()
	wf, err := m.Store.UpdateStatus(ctx, id, StatusApproved, StatusUpdate{
		To:          StatusCompleted,
		CompletedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	transitionCount.WithLabelValues(string(StatusCompleted)).Inc()
	m.logger().Info("workflow completed", "workflow", id, "content", current.ContentID, "actor", actorID)
	return wf, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Workflow, error) {
	return m.Store.Get(ctx, id)
}

func (m *Manager) List(ctx context.Context, filter ListFilter) ([]*Workflow, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, engine.NewValidationError(fmt.Sprintf("unknown workflow status %q", filter.Status))
	}
	return m.Store.List(ctx, filter)
}
