package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/platform/migrations"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestGetBookMapsNoRowsToNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM books WHERE id = $1`)).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetBook(context.Background(), 7)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreateUser(context.Background(), account.User{Username: "ali", Email: "ali@example.com"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteBookWithoutRowsIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM books WHERE id = $1`)).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteBook(context.Background(), 3); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckoutEmptyCartRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO carts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, user_id, created_at FROM carts").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at"}).AddRow(1, 5, now))
	mock.ExpectQuery("FROM cart_items ci").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cart_id", "book_id", "quantity", "created_at", "book_name", "unit_price"}))
	mock.ExpectRollback()

	_, err := store.Checkout(context.Background(), 5)
	if !errors.Is(err, storage.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompletePaymentAlreadyPaidIsNoop(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM payments WHERE authority = \\$1 FOR UPDATE").
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "amount", "product_type", "product_id", "authority", "status", "cart_added_at", "created_at", "paid_at",
		}).AddRow(1, 2, 1000, "book", 3, "abc", "success", nil, now, now))
	mock.ExpectCommit()

	payment, fulfilled, err := store.CompletePayment(context.Background(), "abc", now)
	if err != nil {
		t.Fatalf("complete payment: %v", err)
	}
	if fulfilled {
		t.Fatalf("expected no second fulfilment")
	}
	if payment.Status != shop.PaymentSuccess {
		t.Fatalf("unexpected status %s", payment.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompletePaymentCourseEnrolls(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "amount", "product_type", "product_id", "authority", "status", "cart_added_at", "created_at", "paid_at",
		}).AddRow(1, 2, 1000, "course", 9, "xyz", "pending", nil, now, nil))
	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(int64(2), int64(9), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE payments SET status").
		WithArgs(int64(1), "success", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment, fulfilled, err := store.CompletePayment(context.Background(), "xyz", now)
	if err != nil {
		t.Fatalf("complete payment: %v", err)
	}
	if !fulfilled || payment.PaidAt == nil {
		t.Fatalf("expected fulfilled payment, got %+v", payment)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	store := New(db)

	suffix := time.Now().Format("150405.000000")
	user, err := store.CreateUser(ctx, account.User{Username: "buyer" + suffix, Email: "buyer" + suffix + "@example.com", IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	book, err := store.CreateBook(ctx, shop.Book{Name: "Go " + suffix, Price: 1500, Stock: 1})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if _, err := store.AddCartItem(ctx, user.ID, book.ID, 2); err != nil {
		t.Fatalf("add cart item: %v", err)
	}
	order, err := store.Checkout(ctx, user.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if order.TotalPrice != 3000 || len(order.Items) != 1 {
		t.Fatalf("unexpected order %+v", order)
	}
}
