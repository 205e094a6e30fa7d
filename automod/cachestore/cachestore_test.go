package cachestore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type directory struct {
	roles map[string][]string
	calls atomic.Int64
	err   error
}

func (d *directory) load(ctx context.Context, userID string) (RoleEntry, error) {
	d.calls.Add(1)
	if d.err != nil {
		return RoleEntry{}, d.err
	}
	roles, ok := d.roles[userID]
	if !ok {
		return RoleEntry{Unknown: true}, nil
	}
	return RoleEntry{Roles: roles}, nil
}

func TestMemRoleCacheBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	dir := &directory{roles: map[string][]string{"mod1": {"moderator"}}}
	rc := NewMemRoleCache(10, time.Hour, time.Minute)

	e, err := rc.Fetch(ctx, "mod1", dir.load)
	assert.NoError(err)
	assert.Equal([]string{"moderator"}, e.Roles)
	assert.False(e.Unknown)

	// callers can't corrupt the cached slice
	e.Roles[0] = "admin"
	e, err = rc.Fetch(ctx, "mod1", dir.load)
	assert.NoError(err)
	assert.Equal([]string{"moderator"}, e.Roles)
	assert.Equal(int64(1), dir.calls.Load())

	// unknown users are cached too
	for range 3 {
		e, err = rc.Fetch(ctx, "ghost", dir.load)
		assert.NoError(err)
		assert.True(e.Unknown)
		assert.Empty(e.Roles)
	}
	assert.Equal(int64(2), dir.calls.Load())

	// role change followed by purge
	dir.roles["mod1"] = []string{"moderator", "admin"}
	dir.roles["ghost"] = []string{"reviewer"}
	assert.NoError(rc.Purge(ctx, "mod1", "ghost", "nobody"))

	e, err = rc.Fetch(ctx, "mod1", dir.load)
	assert.NoError(err)
	assert.Equal([]string{"moderator", "admin"}, e.Roles)
	e, err = rc.Fetch(ctx, "ghost", dir.load)
	assert.NoError(err)
	assert.False(e.Unknown)
	assert.Equal([]string{"reviewer"}, e.Roles)
	assert.Equal(int64(4), dir.calls.Load())
}

func TestMemRoleCacheUnknownExpiresFirst(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	dir := &directory{roles: map[string][]string{"u1": {}}}
	rc := NewMemRoleCache(10, time.Hour, 20*time.Millisecond)

	_, err := rc.Fetch(ctx, "u1", dir.load)
	assert.NoError(err)
	e, err := rc.Fetch(ctx, "u2", dir.load)
	assert.NoError(err)
	assert.True(e.Unknown)

	dir.roles["u2"] = []string{"moderator"}
	assert.Eventually(func() bool {
		e, err := rc.Fetch(ctx, "u2", dir.load)
		return err == nil && !e.Unknown
	}, time.Second, 10*time.Millisecond)

	before := dir.calls.Load()
	_, err = rc.Fetch(ctx, "u1", dir.load)
	assert.NoError(err)
	assert.Equal(before, dir.calls.Load())
}

func TestMemRoleCacheLoadErrors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	boom := errors.New("directory unavailable")
	dir := &directory{roles: map[string][]string{"mod1": {"moderator"}}, err: boom}
	rc := NewMemRoleCache(10, time.Hour, time.Minute)

	_, err := rc.Fetch(ctx, "mod1", dir.load)
	assert.ErrorIs(err, boom)

	dir.err = nil
	e, err := rc.Fetch(ctx, "mod1", dir.load)
	assert.NoError(err)
	assert.Equal([]string{"moderator"}, e.Roles)
	assert.Equal(int64(2), dir.calls.Load())
}

func TestMemRoleCacheSharesConcurrentLoads(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	release := make(chan struct{})
	var calls atomic.Int64
	load := func(ctx context.Context, userID string) (RoleEntry, error) {
		calls.Add(1)
		<-release
		return RoleEntry{Roles: []string{"moderator"}}, nil
	}
	rc := NewMemRoleCache(10, time.Hour, time.Minute)

	var wg sync.WaitGroup
	results := make([]RoleEntry, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := rc.Fetch(ctx, "mod1", load)
			if err == nil {
				results[i] = e
			}
		}()
	}
	require.Eventually(func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(int64(1), calls.Load())
	for _, e := range results {
		require.Equal([]string{"moderator"}, e.Roles)
	}
}

func TestDefaultUnknownTTL(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(time.Minute, DefaultUnknownTTL(0))
	assert.Equal(time.Minute, DefaultUnknownTTL(30*time.Minute))
	assert.Equal(30*time.Second, DefaultUnknownTTL(5*time.Minute))
}
