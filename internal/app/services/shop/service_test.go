package shop

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/services/shortlinks"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/app/storage/memory"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
)

type invalidations struct{ calls [][2]int64 }

func (i *invalidations) InvalidateEnrollment(_ context.Context, userID, courseID int64) {
	i.calls = append(i.calls, [2]int64{userID, courseID})
}

type harness struct {
	store *memory.Store
	cache *cache.Memory
	inv   *invalidations
	svc   *Service
	buyer auth.Principal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	c := cache.NewMemory()
	inv := &invalidations{}
	links := shortlinks.New(store, store, store, c, nil, "http://front.test", nil)
	buyer, err := store.CreateUser(context.Background(), account.User{Username: "buyer", Email: "b@example.com", IsActive: true})
	require.NoError(t, err)
	return &harness{
		store: store,
		cache: c,
		inv:   inv,
		svc:   New(store, store, c, links, inv, nil, nil),
		buyer: auth.Principal{UserID: buyer.ID},
	}
}

func (h *harness) book(t *testing.T, name string, price int64, stock int) shop.Book {
	t.Helper()
	b, err := h.svc.CreateBook(context.Background(), BookInput{Name: &name, Price: &price, Stock: &stock})
	require.NoError(t, err)
	return b
}

func TestBookCatalogue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.book(t, "Zen of Go", 500, 2)
	empty := h.book(t, "Archived", 100, 0)
	assert.NotEmpty(t, empty.ShortCode)

	inStock, err := h.svc.ListInStock(ctx)
	require.NoError(t, err)
	require.Len(t, inStock, 1)
	assert.Equal(t, "Zen of Go", inStock[0].Name)

	stock := 3
	_, err = h.svc.UpdateBook(ctx, empty.ID, BookInput{Stock: &stock})
	require.NoError(t, err)
	assert.False(t, h.cache.Has(cache.KeyBooksInStock))
	inStock, err = h.svc.ListInStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Archived", inStock[0].Name, "ordered by name")

	negative := int64(-1)
	_, err = h.svc.UpdateBook(ctx, empty.ID, BookInput{Price: &negative})
	assert.Error(t, err)
}

func TestCartCheckoutAndOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "Concurrency", 250, 10)

	_, err := h.svc.Checkout(ctx, h.buyer.UserID)
	assert.EqualError(t, err, "Cart is empty.")

	_, err = h.svc.AddToCart(ctx, h.buyer.UserID, b.ID, 0)
	require.NoError(t, err)
	item, err := h.svc.AddToCart(ctx, h.buyer.UserID, b.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)

	_, err = h.svc.ListUserOrders(ctx, h.buyer.UserID)
	require.NoError(t, err)

	order, err := h.svc.Checkout(ctx, h.buyer.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(750), order.TotalPrice)
	assert.Equal(t, shop.OrderPending, order.Status)
	assert.False(t, h.cache.Has(cache.KeyOrdersUser(h.buyer.UserID)))

	cart, err := h.svc.Cart(ctx, h.buyer.UserID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = h.svc.GetOrder(ctx, auth.Principal{UserID: 999}, order.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = h.svc.SetOrderStatus(ctx, order.ID, "lost")
	assert.Error(t, err)
	shipped, err := h.svc.SetOrderStatus(ctx, order.ID, shop.OrderShipped)
	require.NoError(t, err)
	assert.Equal(t, shop.OrderShipped, shipped.Status)
}

func TestBookPaymentFulfilsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "Networking", 400, 1)

	_, err := h.svc.AddToCart(ctx, h.buyer.UserID, b.ID, 1)
	require.NoError(t, err)
	payment, url, err := h.svc.RequestPayment(ctx, h.buyer.UserID, PaymentRequest{ProductType: "BOOK", ProductID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, "https://fake-gateway/pay/"+payment.Authority, url)
	assert.Len(t, payment.Authority, 32)
	assert.False(t, strings.Contains(payment.Authority, "-"))
	assert.Equal(t, int64(400), payment.Amount)
	require.NotNil(t, payment.CartAddedAt)

	_, err = h.svc.VerifyPayment(ctx, 999, payment.Authority)
	assert.Equal(t, 404, apperrors.HTTPStatus(err), "other users cannot verify")

	done, err := h.svc.VerifyPayment(ctx, h.buyer.UserID, payment.Authority)
	require.NoError(t, err)
	assert.Equal(t, shop.PaymentSuccess, done.Status)

	_, err = h.svc.VerifyPayment(ctx, h.buyer.UserID, payment.Authority)
	require.NoError(t, err)
	stored, err := h.store.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Stock, "second verify must not decrement again")

	cart, err := h.svc.Cart(ctx, h.buyer.UserID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCoursePaymentEnrolls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	teacher, err := h.store.CreateUser(ctx, account.User{Username: "t", Email: "t@example.com", Role: account.RoleTeacher, IsActive: true})
	require.NoError(t, err)
	course, err := h.store.CreateCourse(ctx, catalog.Course{Name: "Go", Description: "x", Price: 900, TeacherID: teacher.ID})
	require.NoError(t, err)

	_, _, err = h.svc.RequestPayment(ctx, h.buyer.UserID, PaymentRequest{ProductType: "video", ProductID: course.ID})
	assert.EqualError(t, err, "Invalid product type.")
	_, _, err = h.svc.RequestPayment(ctx, h.buyer.UserID, PaymentRequest{ProductType: shop.ProductCourse, ProductID: 12345})
	assert.EqualError(t, err, "Product not found.")

	payment, _, err := h.svc.RequestPayment(ctx, h.buyer.UserID, PaymentRequest{ProductType: shop.ProductCourse, ProductID: course.ID})
	require.NoError(t, err)
	_, err = h.svc.VerifyPayment(ctx, h.buyer.UserID, payment.Authority)
	require.NoError(t, err)

	_, err = h.store.FindEnrollment(ctx, h.buyer.UserID, course.ID)
	assert.NoError(t, err)
	assert.Equal(t, [][2]int64{{h.buyer.UserID, course.ID}}, h.inv.calls)
}
