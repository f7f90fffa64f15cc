// Package shop sells books and courses: the book catalogue, carts, orders
// and the fake payment gateway.
package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainaudit "github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/domain/shortlink"
	"github.com/EduShopX/edushop/internal/app/services/audit"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/pkg/logger"
)

// Linker gives new books a short link.
type Linker interface {
	Ensure(ctx context.Context, target shortlink.TargetType, objectID int64) (shortlink.Link, error)
	CodeFor(ctx context.Context, target shortlink.TargetType, objectID int64) string
}

// EnrollmentInvalidator drops cached lists after payment verification
// enrols a user.
type EnrollmentInvalidator interface {
	InvalidateEnrollment(ctx context.Context, userID, courseID int64)
}

// BookInput creates or patches a book. Nil fields keep their value.
type BookInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int64  `json:"price"`
	Stock       *int    `json:"stock"`
}

// Service owns books, carts, orders and payments.
type Service struct {
	store       storage.ShopStore
	courses     storage.CatalogStore
	cache       cache.Cache
	links       Linker
	enrollments EnrollmentInvalidator
	audit       audit.Recorder
	gatewayURL  string
	log         *logger.Logger
	now         func() time.Time
}

// New creates a shop service. links, enrollments and rec may be nil.
func New(store storage.ShopStore, courses storage.CatalogStore, c cache.Cache, links Linker, enrollments EnrollmentInvalidator, rec audit.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("shop")
	}
	return &Service{
		store:       store,
		courses:     courses,
		cache:       c,
		links:       links,
		enrollments: enrollments,
		audit:       rec,
		gatewayURL:  "https://fake-gateway/pay/",
		log:         log,
		now:         time.Now,
	}
}

// WithGateway sets the payment page prefix the authority is appended to.
func (s *Service) WithGateway(base string) *Service {
	if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
		s.gatewayURL = base + "/"
	}
	return s
}

func (s *Service) record(ctx context.Context, action domainaudit.Action, model string, id int64, repr string) {
	if s.audit != nil {
		s.audit.Record(ctx, action, model, id, repr)
	}
}

func (s *Service) withCode(ctx context.Context, book shop.Book) shop.Book {
	if s.links != nil {
		book.ShortCode = s.links.CodeFor(ctx, shortlink.TargetBook, book.ID)
	}
	return book
}

// ListInStock returns books with stock left, ordered by name.
func (s *Service) ListInStock(ctx context.Context) ([]shop.Book, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyBooksInStock, cache.DefaultTTL, func(ctx context.Context) ([]shop.Book, error) {
		books, err := s.store.ListBooks(ctx, true)
		if err != nil {
			return nil, err
		}
		for i := range books {
			books[i] = s.withCode(ctx, books[i])
		}
		return books, nil
	})
}

// ListBooks returns every book for staff.
func (s *Service) ListBooks(ctx context.Context) ([]shop.Book, error) {
	books, err := s.store.ListBooks(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range books {
		books[i] = s.withCode(ctx, books[i])
	}
	return books, nil
}

// GetBook returns a book by id.
func (s *Service) GetBook(ctx context.Context, id int64) (shop.Book, error) {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		return shop.Book{}, err
	}
	return s.withCode(ctx, book), nil
}

// CreateBook adds a book and gives it a short link.
func (s *Service) CreateBook(ctx context.Context, in BookInput) (shop.Book, error) {
	var book shop.Book
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return shop.Book{}, apperrors.Validation("name", "This field is required.")
	}
	if in.Price == nil {
		return shop.Book{}, apperrors.Validation("price", "This field is required.")
	}
	if err := applyBookInput(&book, in); err != nil {
		return shop.Book{}, err
	}
	created, err := s.store.CreateBook(ctx, book)
	if err != nil {
		return shop.Book{}, err
	}
	if s.links != nil {
		if _, err := s.links.Ensure(ctx, shortlink.TargetBook, created.ID); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("book_id", created.ID).Warn("create book short link")
		}
	}
	cache.Invalidate(ctx, s.cache, cache.KeyBooksInStock)
	s.record(ctx, domainaudit.ActionAdd, "book", created.ID, created.Name)
	return s.withCode(ctx, created), nil
}

// UpdateBook patches a book.
func (s *Service) UpdateBook(ctx context.Context, id int64, in BookInput) (shop.Book, error) {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		return shop.Book{}, err
	}
	if err := applyBookInput(&book, in); err != nil {
		return shop.Book{}, err
	}
	if book.Name == "" {
		return shop.Book{}, apperrors.Validation("name", "This field is required.")
	}
	updated, err := s.store.UpdateBook(ctx, book)
	if err != nil {
		return shop.Book{}, err
	}
	cache.Invalidate(ctx, s.cache, cache.KeyBooksInStock)
	s.record(ctx, domainaudit.ActionChange, "book", updated.ID, updated.Name)
	return s.withCode(ctx, updated), nil
}

// DeleteBook removes a book.
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBook(ctx, id); err != nil {
		return err
	}
	cache.Invalidate(ctx, s.cache, cache.KeyBooksInStock)
	s.record(ctx, domainaudit.ActionDelete, "book", id, book.Name)
	return nil
}

func applyBookInput(book *shop.Book, in BookInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len(name) > 255 {
			return apperrors.Validation("name", "Ensure this field has no more than 255 characters.")
		}
		book.Name = name
	}
	if in.Description != nil {
		book.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return apperrors.Validation("price", "Ensure this value is greater than or equal to 0.")
		}
		book.Price = *in.Price
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return apperrors.Validation("stock", "Ensure this value is greater than or equal to 0.")
		}
		book.Stock = *in.Stock
	}
	return nil
}

func notFoundAs(err error, field, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Validation(field, msg)
	}
	return fmt.Errorf("%s: %w", field, err)
}
