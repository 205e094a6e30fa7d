package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

type MemRoleCache struct {
	Known   *expirable.LRU[string, RoleEntry]
	Unknown *expirable.LRU[string, RoleEntry]

	group singleflight.Group
}

var _ RoleCache = (*MemRoleCache)(nil)

// A zero unknownTTL picks DefaultUnknownTTL(ttl).
func NewMemRoleCache(capacity int, ttl, unknownTTL time.Duration) *MemRoleCache {
	if unknownTTL == 0 {
		unknownTTL = DefaultUnknownTTL(ttl)
	}
	return &MemRoleCache{
		Known:   expirable.NewLRU[string, RoleEntry](capacity, nil, ttl),
		Unknown: expirable.NewLRU[string, RoleEntry](capacity, nil, unknownTTL),
	}
}

func (c *MemRoleCache) Fetch(ctx context.Context, userID string, load RoleLoader) (RoleEntry, error) {
	if e, ok := c.Known.Get(userID); ok {
		return e.clone(), nil
	}
	if e, ok := c.Unknown.Get(userID); ok {
		return e, nil
	}
	v, err, _ := c.group.Do(userID, func() (any, error) {
		e, err := load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if e.Unknown {
			c.Unknown.Add(userID, RoleEntry{Unknown: true})
		} else {
			c.Known.Add(userID, e.clone())
		}
		return e, nil
	})
	if err != nil {
		return RoleEntry{}, err
	}
	return v.(RoleEntry).clone(), nil
}

func (c *MemRoleCache) Purge(ctx context.Context, userIDs ...string) error {
	for _, id := range userIDs {
		c.Known.Remove(id)
		c.Unknown.Remove(id)
	}
	return nil
}
