package cachestore

import (
	"context"
	"slices"
	"time"
)

// What the cache knows about one user.
type RoleEntry struct {
	Roles []string `json:"roles"`
	// the directory had no such user
	Unknown bool `json:"unknown,omitempty"`
}

func (e RoleEntry) clone() RoleEntry {
	e.Roles = slices.Clone(e.Roles)
	return e
}

// Looks up a user's roles from the authoritative directory. Errors are returned to the caller and never cached.
type RoleLoader func(ctx context.Context, userID string) (RoleEntry, error)

type RoleCache interface {
	// Returns the cached entry, or calls load on a miss and caches its result.
	Fetch(ctx context.Context, userID string, load RoleLoader) (RoleEntry, error)
	// Drops entries, after a ban or role change.
	Purge(ctx context.Context, userIDs ...string) error
}

// TTL for cached unknown users, when not configured explicitly.
func DefaultUnknownTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > 10*time.Minute {
		return time.Minute
	}
	return ttl / 10
}
