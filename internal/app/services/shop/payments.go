package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/metrics"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
)

// PaymentRequest names the product a payment buys.
type PaymentRequest struct {
	ProductType shop.ProductType `json:"product_type"`
	ProductID   int64            `json:"product_id"`
}

// RequestPayment records a pending payment for the product's current price
// and returns the gateway URL.
func (s *Service) RequestPayment(ctx context.Context, userID int64, req PaymentRequest) (shop.Payment, string, error) {
	req.ProductType = shop.ProductType(strings.ToLower(string(req.ProductType)))
	if !req.ProductType.Valid() {
		return shop.Payment{}, "", apperrors.Validation("product_type", "Invalid product type.")
	}

	payment := shop.Payment{
		UserID:      userID,
		ProductType: req.ProductType,
		ProductID:   req.ProductID,
		Authority:   strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:      shop.PaymentPending,
		CreatedAt:   s.now().UTC(),
	}
	switch req.ProductType {
	case shop.ProductCourse:
		course, err := s.courses.GetCourse(ctx, req.ProductID)
		if err != nil {
			return shop.Payment{}, "", notFoundAs(err, "product_id", "Product not found.")
		}
		payment.Amount = course.Price
	case shop.ProductBook:
		book, err := s.store.GetBook(ctx, req.ProductID)
		if err != nil {
			return shop.Payment{}, "", notFoundAs(err, "product_id", "Product not found.")
		}
		payment.Amount = book.Price
		cart, err := s.store.GetOrCreateCart(ctx, userID)
		if err != nil {
			return shop.Payment{}, "", err
		}
		for _, item := range cart.Items {
			if item.BookID == book.ID {
				added := item.CreatedAt
				payment.CartAddedAt = &added
				break
			}
		}
	}

	created, err := s.store.CreatePayment(ctx, payment)
	if err != nil {
		return shop.Payment{}, "", err
	}
	s.log.WithContext(ctx).
		WithField("payment_id", created.ID).
		WithField("product_type", created.ProductType).
		WithField("amount", created.Amount).
		Info("payment requested")
	return created, s.gatewayURL + created.Authority, nil
}

// VerifyPayment marks the caller's payment successful and delivers the
// product. Verifying a payment twice is a no-op.
func (s *Service) VerifyPayment(ctx context.Context, userID int64, authority string) (shop.Payment, error) {
	existing, err := s.store.GetPaymentByAuthority(ctx, authority)
	if err != nil || existing.UserID != userID {
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			return shop.Payment{}, apperrors.Missing("Invalid authority.")
		}
		return shop.Payment{}, err
	}

	payment, fulfilled, err := s.store.CompletePayment(ctx, authority, s.now())
	if err != nil {
		return shop.Payment{}, fmt.Errorf("complete payment %s: %w", authority, err)
	}
	if !fulfilled {
		return payment, nil
	}

	switch payment.ProductType {
	case shop.ProductCourse:
		if s.enrollments != nil {
			s.enrollments.InvalidateEnrollment(ctx, payment.UserID, payment.ProductID)
		}
	case shop.ProductBook:
		cache.Invalidate(ctx, s.cache, cache.KeyBooksInStock, cache.KeyOrdersUser(payment.UserID))
	}
	metrics.RecordPaymentVerified(string(payment.ProductType))
	s.log.WithContext(ctx).
		WithField("payment_id", payment.ID).
		WithField("product_type", payment.ProductType).
		Info("payment verified")
	return payment, nil
}
