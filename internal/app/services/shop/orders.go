package shop

import (
	"context"
	"errors"
	"fmt"

	domainaudit "github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
)

// Cart returns the caller's cart, creating it on first use.
func (s *Service) Cart(ctx context.Context, userID int64) (shop.Cart, error) {
	return s.store.GetOrCreateCart(ctx, userID)
}

// AddToCart adds quantity copies of a book to the caller's cart. A
// non-positive quantity counts as one.
func (s *Service) AddToCart(ctx context.Context, userID, bookID int64, quantity int) (shop.CartItem, error) {
	if quantity <= 0 {
		quantity = 1
	}
	return s.store.AddCartItem(ctx, userID, bookID, quantity)
}

// Checkout turns the caller's cart into a pending order.
func (s *Service) Checkout(ctx context.Context, userID int64) (shop.Order, error) {
	order, err := s.store.Checkout(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrEmptyCart) {
			return shop.Order{}, apperrors.BadRequest("Cart is empty.")
		}
		return shop.Order{}, err
	}
	cache.Invalidate(ctx, s.cache, cache.KeyOrdersUser(userID))
	s.log.WithContext(ctx).
		WithField("order_id", order.ID).
		WithField("total_price", order.TotalPrice).
		Info("order created")
	return order, nil
}

// ListUserOrders returns the caller's orders.
func (s *Service) ListUserOrders(ctx context.Context, userID int64) ([]shop.Order, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyOrdersUser(userID), cache.DefaultTTL, func(ctx context.Context) ([]shop.Order, error) {
		return s.store.ListOrders(ctx, storage.OrderFilter{BuyerID: userID})
	})
}

// GetOrder returns an order p placed, or any for staff.
func (s *Service) GetOrder(ctx context.Context, p auth.Principal, id int64) (shop.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return shop.Order{}, err
	}
	if !p.IsAdmin() && order.BuyerID != p.UserID {
		return shop.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	return order, nil
}

// ListOrders returns every order, optionally narrowed by status.
func (s *Service) ListOrders(ctx context.Context, status shop.OrderStatus) ([]shop.Order, error) {
	if status != "" && !status.Valid() {
		return nil, apperrors.Validation("status", fmt.Sprintf("%q is not a valid choice.", status))
	}
	return s.store.ListOrders(ctx, storage.OrderFilter{Status: status})
}

// SetOrderStatus moves an order through fulfilment.
func (s *Service) SetOrderStatus(ctx context.Context, id int64, status shop.OrderStatus) (shop.Order, error) {
	if !status.Valid() {
		return shop.Order{}, apperrors.Validation("status", fmt.Sprintf("%q is not a valid choice.", status))
	}
	order, err := s.store.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return shop.Order{}, err
	}
	cache.Invalidate(ctx, s.cache, cache.KeyOrdersUser(order.BuyerID))
	s.record(ctx, domainaudit.ActionChange, "order", order.ID, fmt.Sprintf("Order #%d - %s", order.ID, order.Status))
	return order, nil
}
