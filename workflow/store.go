package workflow

import (
	"context"
)

// Persistence for workflows. Status changes are compare-and-swap, so concurrent reviewers can't both move a workflow out of the same state.
type Store interface {
	Create(ctx context.Context, wf *Workflow) error
	Get(ctx context.Context, id string) (*Workflow, error)
	// Newest first.
	List(ctx context.Context, filter ListFilter) ([]*Workflow, error)
	// Applies the update only if the current status is from. Returns ErrInvalidTransition if the status has changed, or ErrNotFound.
	UpdateStatus(ctx context.Context, id string, from Status, upd StatusUpdate) (*Workflow, error)
	// Sets the assignee, only while the workflow is pending.
	SetAssignee(ctx context.Context, id string, assigneeID string) (*Workflow, error)
}
