package shortlinks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/domain/shortlink"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/app/storage/memory"
	"github.com/EduShopX/edushop/internal/cache"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/internal/tasks/taskstest"
)

func newService(t *testing.T) (*Service, *memory.Store, *cache.Memory, *taskstest.Recorder, shop.Book) {
	t.Helper()
	store := memory.New()
	book, err := store.CreateBook(context.Background(), shop.Book{Name: "The Go Programming Language", Price: 500, Stock: 3})
	require.NoError(t, err)
	c := cache.NewMemory()
	queue := taskstest.New()
	return New(store, store, store, c, queue, "http://front.test/", nil), store, c, queue, book
}

func TestCreateValidatesTarget(t *testing.T) {
	svc, _, _, _, book := newService(t)
	ctx := context.Background()

	link, err := svc.Create(ctx, "Book", book.ID)
	require.NoError(t, err)
	assert.Len(t, link.Code, shortlink.CodeLength)
	assert.Equal(t, shortlink.TargetBook, link.TargetType)

	_, err = svc.Create(ctx, "article", book.ID)
	assert.Error(t, err)
	_, err = svc.Create(ctx, "course", 404)
	assert.Error(t, err)
}

func TestEnsureIsIdempotent(t *testing.T) {
	svc, _, _, _, book := newService(t)
	ctx := context.Background()
	first, err := svc.Ensure(ctx, shortlink.TargetBook, book.ID)
	require.NoError(t, err)
	second, err := svc.Ensure(ctx, shortlink.TargetBook, book.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Code, svc.CodeFor(ctx, shortlink.TargetBook, book.ID))
}

func TestResolveQueuesClickAndHandlerCounts(t *testing.T) {
	svc, store, c, queue, book := newService(t)
	ctx := context.Background()
	link, err := svc.Ensure(ctx, shortlink.TargetBook, book.ID)
	require.NoError(t, err)

	url, err := svc.Resolve(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, "http://front.test/1/", url)

	calls := queue.Calls(TaskClick)
	require.Len(t, calls, 1)
	_, err = svc.handleClick(ctx, &tasks.Task{Name: TaskClick, Args: calls[0].Args})
	require.NoError(t, err)

	stored, err := store.GetShortLink(ctx, link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.Clicks)

	stats, err := svc.Stats(ctx, link.Code)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Clicks)
	assert.True(t, c.Has(cache.KeyShortLinkStats(link.Code)))

	_, err = svc.Resolve(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestClickOnDeletedLinkIsNotRetried(t *testing.T) {
	svc, _, _, _, _ := newService(t)
	raw, _ := json.Marshal(ClickArgs{LinkID: 999})
	_, err := svc.handleClick(context.Background(), &tasks.Task{Name: TaskClick, Args: raw})
	assert.True(t, errors.Is(err, tasks.ErrNoRetry))
}

func TestTargetURLForCourse(t *testing.T) {
	svc, _, _, _, _ := newService(t)
	got := svc.TargetURL(shortlink.Link{TargetType: shortlink.TargetCourse, TargetID: 7})
	assert.Equal(t, "http://front.test/courses/7", got)
}
