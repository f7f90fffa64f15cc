package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/app/storage/memory"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/internal/tasks/taskstest"
)

func users(t *testing.T, store *memory.Store) (auth.Principal, auth.Principal, auth.Principal) {
	t.Helper()
	ctx := context.Background()
	mk := func(name string, staff bool) auth.Principal {
		u, err := store.CreateUser(ctx, account.User{Username: name, Email: name + "@example.com", IsStaff: staff, IsActive: true})
		require.NoError(t, err)
		return auth.Principal{UserID: u.ID, IsStaff: staff}
	}
	return mk("owner", false), mk("stranger", false), mk("support", true)
}

func TestRoomLifecycle(t *testing.T) {
	store := memory.New()
	c := cache.NewMemory()
	svc := New(store, c, nil)
	ctx := context.Background()
	owner, stranger, staff := users(t, store)

	room, err := svc.CreateRoom(ctx, owner)
	require.NoError(t, err)
	assert.True(t, room.IsActive)
	_, err = svc.CreateRoom(ctx, owner)
	assert.EqualError(t, err, "There is already a room for this user.")

	_, err = svc.ListUserMessages(ctx, stranger)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = svc.PostUserMessage(ctx, owner, "hello")
	require.NoError(t, err)
	msgs, err := svc.ListRoomMessages(ctx, staff, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "owner", msgs[0].Sender)
	assert.True(t, c.Has(cache.KeyMessagesRoomUser(room.ID, staff.UserID)))

	reply, err := svc.PostRoomMessage(ctx, staff, room.ID, "how can we help?")
	require.NoError(t, err)
	assert.Equal(t, staff.UserID, reply.SenderID)
	assert.False(t, c.Has(cache.KeyMessagesRoomUser(room.ID, staff.UserID)), "a new message drops every viewer's cache")

	mine, err := svc.ListUserMessages(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = svc.PostUserMessage(ctx, owner, "   ")
	assert.Error(t, err)
}

func TestLiveAccess(t *testing.T) {
	store := memory.New()
	svc := New(store, cache.NewMemory(), nil)
	ctx := context.Background()
	owner, stranger, staff := users(t, store)
	room, err := svc.CreateRoom(ctx, owner)
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		p    auth.Principal
		want bool
	}{
		{"owner", owner, true},
		{"staff", staff, true},
		{"stranger", stranger, false},
	} {
		ok, err := svc.CanJoin(ctx, tc.p, room.ID)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, ok, tc.name)
	}
	ok, err := svc.CanJoin(ctx, staff, 9999)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.SaveLiveMessage(ctx, stranger, room.ID, "hi")
	assert.ErrorIs(t, err, ErrPermission)
	_, err = svc.SaveLiveMessage(ctx, owner, room.ID, "hi")
	require.NoError(t, err)

	require.NoError(t, svc.CloseRoom(ctx, room.ID))
	_, err = svc.SaveLiveMessage(ctx, staff, room.ID, "still there?")
	assert.ErrorIs(t, err, ErrPermission)

	n, err := svc.DeleteInactiveRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	rooms, err := svc.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestCleanupTaskAndSchedule(t *testing.T) {
	store := memory.New()
	svc := New(store, cache.NewMemory(), nil)
	registry := tasks.NewRegistry()
	svc.RegisterTasks(registry)

	opts, ok := registry.Options(TaskDeleteInactiveRooms)
	require.True(t, ok)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.True(t, opts.Backoff)

	beat := tasks.NewBeat(taskstest.New(), nil)
	require.NoError(t, ScheduleCleanup(beat))
	assert.Contains(t, beat.Scheduled(), TaskDeleteInactiveRooms)
}
