package flagstore

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

var redisFlagPrefix string = "moddesk/flag/"

// set of all keys with flags, so the review queue can be listed without SCAN
var redisFlagIndexKey string = "moddesk/flagged"

type RedisFlagStore struct {
	Client *redis.Client
}

var _ FlagStore = (*RedisFlagStore)(nil)

func NewRedisFlagStore(redisURL string) (*RedisFlagStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisFlagStore{
		Client: rdb,
	}, nil
}

func (s *RedisFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	l, err := s.Client.SMembers(ctx, redisFlagPrefix+key).Result()
	if err == redis.Nil {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	sort.Strings(l)
	return l, nil
}

func (s *RedisFlagStore) Add(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	l := []interface{}{}
	for _, v := range dedupeStrings(flags) {
		l = append(l, v)
	}
	multi := s.Client.TxPipeline()
	multi.SAdd(ctx, redisFlagPrefix+key, l...)
	multi.SAdd(ctx, redisFlagIndexKey, key)
	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	l := []interface{}{}
	for _, v := range flags {
		l = append(l, v)
	}
	if err := s.Client.SRem(ctx, redisFlagPrefix+key, l...).Err(); err != nil {
		return err
	}
	n, err := s.Client.SCard(ctx, redisFlagPrefix+key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.Client.SRem(ctx, redisFlagIndexKey, key).Err()
	}
	return nil
}

func (s *RedisFlagStore) Keys(ctx context.Context) ([]string, error) {
	l, err := s.Client.SMembers(ctx, redisFlagIndexKey).Result()
	if err == redis.Nil {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	sort.Strings(l)
	return l, nil
}
