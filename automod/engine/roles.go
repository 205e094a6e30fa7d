package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/socialdesk/moddesk/automod/cachestore"
)

// Looks up a user's roles, read-through the engine's RoleCache when one is configured.
//
// Users missing from the directory are cached as unknown and reported as ErrNotFound. Directory errors are never cached.
func (eng *Engine) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	if eng.Cache == nil {
		return eng.fetchUserRoles(ctx, userID)
	}
	entry, err := eng.Cache.Fetch(ctx, userID, eng.loadRoleEntry)
	if err != nil {
		return nil, err
	}
	if entry.Unknown {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if entry.Roles == nil {
		return []string{}, nil
	}
	return entry.Roles, nil
}

func (eng *Engine) fetchUserRoles(ctx context.Context, userID string) ([]string, error) {
	roleFetches.Inc()
	roles, err := eng.Users.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}
	return roles, nil
}

func (eng *Engine) loadRoleEntry(ctx context.Context, userID string) (cachestore.RoleEntry, error) {
	roles, err := eng.fetchUserRoles(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return cachestore.RoleEntry{Unknown: true}, nil
	}
	if err != nil {
		return cachestore.RoleEntry{}, err
	}
	return cachestore.RoleEntry{Roles: roles}, nil
}

// Drops any cached state about the user. Called after bans and role changes.
func (eng *Engine) PurgeUserCaches(ctx context.Context, userID string) error {
	if eng.Cache == nil {
		return nil
	}
	return eng.Cache.Purge(ctx, userID)
}
