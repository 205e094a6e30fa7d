package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

var redisRolePrefix = "moddesk/roles/"

type RedisRoleCache struct {
	Data       *cache.Cache
	TTL        time.Duration
	UnknownTTL time.Duration
}

var _ RoleCache = (*RedisRoleCache)(nil)

// A zero unknownTTL picks DefaultUnknownTTL(ttl).
func NewRedisRoleCache(redisURL string, ttl, unknownTTL time.Duration) (*RedisRoleCache, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if unknownTTL == 0 {
		unknownTTL = DefaultUnknownTTL(ttl)
	}
	// go-redis/cache swaps anything under a second for its one hour default
	unknownTTL = max(unknownTTL, time.Second)
	data := cache.New(&cache.Options{
		Redis: rdb,
		// local tier only ever holds known users; see Fetch
		LocalCache: cache.NewTinyLFU(10_000, ttl),
		Marshal:    json.Marshal,
		Unmarshal:  json.Unmarshal,
	})
	return &RedisRoleCache{
		Data:       data,
		TTL:        ttl,
		UnknownTTL: unknownTTL,
	}, nil
}

func (s *RedisRoleCache) Fetch(ctx context.Context, userID string, load RoleLoader) (RoleEntry, error) {
	var entry RoleEntry
	err := s.Data.Once(&cache.Item{
		Ctx:   ctx,
		Key:   redisRolePrefix + userID,
		Value: &entry,
		TTL:   s.TTL,
		Do: func(item *cache.Item) (any, error) {
			loaded, err := load(item.Context(), userID)
			if err != nil {
				return nil, err
			}
			if loaded.Unknown {
				item.TTL = s.UnknownTTL
				item.SkipLocalCache = true
			}
			return loaded, nil
		},
	})
	if err != nil {
		return RoleEntry{}, err
	}
	return entry, nil
}

func (s *RedisRoleCache) Purge(ctx context.Context, userIDs ...string) error {
	var errs []error
	for _, id := range userIDs {
		if err := s.Data.Delete(ctx, redisRolePrefix+id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
