package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, "edushop", nil), srv
}

func TestGetOrLoadCachesLoaderResult(t *testing.T) {
	c, srv := newRedisCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"go", "redis"}, nil
	}

	first, err := GetOrLoad(ctx, c, KeyCoursesAll, time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, c, KeyCoursesAll, time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.True(t, srv.Exists("edushop:courses:all"))

	srv.FastForward(2 * time.Minute)
	_, err = GetOrLoad(ctx, c, KeyCoursesAll, time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired entry should reload")
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c, srv := newRedisCache(t)
	boom := errors.New("boom")

	_, err := GetOrLoad(context.Background(), c, "k", 0, func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, srv.Exists("edushop:k"))
}

func TestBrokenCacheFallsThroughToLoader(t *testing.T) {
	c, srv := newRedisCache(t)
	srv.Close()

	value, err := GetOrLoad(context.Background(), c, "k", 0, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, value)
}

func TestDeletePatternRemovesMatchingKeysOnly(t *testing.T) {
	c, srv := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, KeyVideosCourseUser(3, 1), []int{1}, 0))
	require.NoError(t, c.Set(ctx, KeyVideosCourseUser(3, 2), []int{1}, 0))
	require.NoError(t, c.Set(ctx, KeyVideosCourseUser(4, 1), []int{1}, 0))

	Invalidate(ctx, c, KeyVideosCourseAll(3))

	assert.False(t, srv.Exists("edushop:videos:course:3:user:1"))
	assert.False(t, srv.Exists("edushop:videos:course:3:user:2"))
	assert.True(t, srv.Exists("edushop:videos:course:4:user:1"))
}

func TestObserverSeesHitsAndMisses(t *testing.T) {
	c, _ := newRedisCache(t)
	var hits, misses int
	c.WithObserver(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	ctx := context.Background()
	var out string
	_, _ = c.Get(ctx, "missing", &out)
	_ = c.Set(ctx, "present", "v", 0)
	_, _ = c.Get(ctx, "present", &out)

	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestMemoryExpiryAndPattern(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, KeyMessagesRoomUser(1, 5), "a", time.Second))
	require.NoError(t, m.Set(ctx, KeyChatRoomsUser(5), "b", time.Minute))
	assert.True(t, m.Has(KeyMessagesRoomUser(1, 5)))

	Invalidate(ctx, m, KeyMessagesRoomAll(1))
	assert.False(t, m.Has(KeyMessagesRoomUser(1, 5)))

	now = now.Add(2 * time.Minute)
	var out string
	found, err := m.Get(ctx, KeyChatRoomsUser(5), &out)
	require.NoError(t, err)
	assert.False(t, found)
}
