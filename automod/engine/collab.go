package engine

import (
	"context"
	"time"
)

// External collaborators. Implementations (database, identity provider, notification system) live outside this package.

type ContentStore interface {
	// Returns an error wrapping ErrNotFound if the item doesn't exist.
	GetContentItem(ctx context.Context, id string) (*ContentItem, error)
	ApplyDelta(ctx context.Context, id string, delta ContentDelta) error
	RemoveContent(ctx context.Context, id string, reason string) error
}

type UserStore interface {
	// Returns an error wrapping ErrNotFound if the user doesn't exist.
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
	// A zero duration is a permanent ban.
	BanUser(ctx context.Context, userID string, reason string, duration time.Duration) error
}

// Fire-and-forget from the engine's perspective: errors are logged and recorded, never retried.
type Notifier interface {
	Notify(ctx context.Context, target, message string) error
}

// Source of rule definitions for processing. Only active rules need to be returned, but the evaluator re-checks the flag.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]*Rule, error)
}

// Static in-process rule list, mostly useful for tests and offline tools.
type StaticRules []*Rule

func (s StaticRules) ActiveRules(ctx context.Context) ([]*Rule, error) {
	out := []*Rule{}
	for _, r := range s {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}
