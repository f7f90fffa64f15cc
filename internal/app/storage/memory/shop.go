package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/storage"
)

// ShopStore implementation ----------------------------------------------------

func (s *Store) CreateBook(_ context.Context, book shop.Book) (shop.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book.ID = s.nextIDLocked()
	book.CreatedAt = time.Now().UTC()
	s.books[book.ID] = book
	return book, nil
}

func (s *Store) UpdateBook(_ context.Context, book shop.Book) (shop.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.books[book.ID]
	if !ok {
		return shop.Book{}, fmt.Errorf("book %d: %w", book.ID, storage.ErrNotFound)
	}
	book.CreatedAt = original.CreatedAt
	s.books[book.ID] = book
	return book, nil
}

func (s *Store) GetBook(_ context.Context, id int64) (shop.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[id]
	if !ok {
		return shop.Book{}, fmt.Errorf("book %d: %w", id, storage.ErrNotFound)
	}
	return book, nil
}

// ListBooks orders in-stock listings by name, everything else by id.
func (s *Store) ListBooks(_ context.Context, inStockOnly bool) ([]shop.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]shop.Book, 0, len(s.books))
	for _, book := range s.books {
		if inStockOnly && book.Stock <= 0 {
			continue
		}
		result = append(result, book)
	}
	if inStockOnly {
		sort.Slice(result, func(i, j int) bool {
			if result[i].Name == result[j].Name {
				return result[i].ID < result[j].ID
			}
			return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
		})
	} else {
		sortByID(result, func(b shop.Book) int64 { return b.ID })
	}
	return result, nil
}

func (s *Store) DeleteBook(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return fmt.Errorf("book %d: %w", id, storage.ErrNotFound)
	}
	delete(s.books, id)
	for iid, item := range s.cartItems {
		if item.BookID == id {
			delete(s.cartItems, iid)
		}
	}
	return nil
}

func (s *Store) cartLocked(userID int64) (shop.Cart, error) {
	if _, ok := s.users[userID]; !ok {
		return shop.Cart{}, fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	cart, ok := s.carts[userID]
	if !ok {
		cart = shop.Cart{ID: s.nextIDLocked(), UserID: userID, CreatedAt: time.Now().UTC()}
		s.carts[userID] = cart
	}
	cart.Items = s.cartItemsLocked(cart.ID)
	return cart, nil
}

func (s *Store) cartItemsLocked(cartID int64) []shop.CartItem {
	items := make([]shop.CartItem, 0)
	for _, item := range s.cartItems {
		if item.CartID != cartID {
			continue
		}
		if book, ok := s.books[item.BookID]; ok {
			item.BookName = book.Name
			item.UnitPrice = book.Price
		}
		items = append(items, item)
	}
	sortByID(items, func(i shop.CartItem) int64 { return i.ID })
	return items
}

func (s *Store) GetOrCreateCart(_ context.Context, userID int64) (shop.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartLocked(userID)
}

func (s *Store) AddCartItem(_ context.Context, userID, bookID int64, quantity int) (shop.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return shop.CartItem{}, fmt.Errorf("book %d: %w", bookID, storage.ErrNotFound)
	}
	cart, err := s.cartLocked(userID)
	if err != nil {
		return shop.CartItem{}, err
	}
	for id, item := range s.cartItems {
		if item.CartID == cart.ID && item.BookID == bookID {
			item.Quantity += quantity
			s.cartItems[id] = item
			item.BookName = book.Name
			item.UnitPrice = book.Price
			return item, nil
		}
	}
	item := shop.CartItem{
		ID:        s.nextIDLocked(),
		CartID:    cart.ID,
		BookID:    bookID,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
	s.cartItems[item.ID] = item
	item.BookName = book.Name
	item.UnitPrice = book.Price
	return item, nil
}

func (s *Store) Checkout(_ context.Context, userID int64) (shop.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.cartLocked(userID)
	if err != nil {
		return shop.Order{}, err
	}
	if len(cart.Items) == 0 {
		return shop.Order{}, storage.ErrEmptyCart
	}

	now := time.Now().UTC()
	order := shop.Order{
		ID:        s.nextIDLocked(),
		BuyerID:   userID,
		Status:    shop.OrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	items := make([]shop.OrderItem, 0, len(cart.Items))
	for _, ci := range cart.Items {
		oi := shop.OrderItem{
			ID:       s.nextIDLocked(),
			OrderID:  order.ID,
			BookID:   ci.BookID,
			Quantity: ci.Quantity,
			Price:    ci.UnitPrice,
		}
		order.TotalPrice += oi.Price * int64(oi.Quantity)
		items = append(items, oi)
		delete(s.cartItems, ci.ID)
	}
	s.orders[order.ID] = order
	s.orderItems[order.ID] = items
	return s.decorateOrderLocked(order), nil
}

func (s *Store) decorateOrderLocked(order shop.Order) shop.Order {
	items := make([]shop.OrderItem, 0, len(s.orderItems[order.ID]))
	for _, item := range s.orderItems[order.ID] {
		if book, ok := s.books[item.BookID]; ok {
			item.BookName = book.Name
		}
		items = append(items, item)
	}
	order.Items = items
	return order
}

func (s *Store) GetOrder(_ context.Context, id int64) (shop.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return shop.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	return s.decorateOrderLocked(order), nil
}

// ListOrders returns newest orders first.
func (s *Store) ListOrders(_ context.Context, filter storage.OrderFilter) ([]shop.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]shop.Order, 0)
	for _, order := range s.orders {
		if filter.BuyerID != 0 && order.BuyerID != filter.BuyerID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		result = append(result, s.decorateOrderLocked(order))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id int64, status shop.OrderStatus) (shop.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return shop.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	s.orders[id] = order
	return s.decorateOrderLocked(order), nil
}

func (s *Store) CreatePayment(_ context.Context, payment shop.Payment) (shop.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.payments {
		if existing.Authority == payment.Authority {
			return shop.Payment{}, fmt.Errorf("authority %s: %w", payment.Authority, storage.ErrConflict)
		}
	}
	payment.ID = s.nextIDLocked()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	s.payments[payment.ID] = payment
	return payment, nil
}

func (s *Store) paymentByAuthorityLocked(authority string) (shop.Payment, bool) {
	for _, p := range s.payments {
		if p.Authority == authority {
			return p, true
		}
	}
	return shop.Payment{}, false
}

func (s *Store) GetPaymentByAuthority(_ context.Context, authority string) (shop.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.paymentByAuthorityLocked(authority)
	if !ok {
		return shop.Payment{}, fmt.Errorf("payment %s: %w", authority, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListPayments(_ context.Context, filter storage.PaymentFilter) ([]shop.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]shop.Payment, 0)
	for _, p := range s.payments {
		if filter.UserID != 0 && p.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.ProductType != "" && p.ProductType != filter.ProductType {
			continue
		}
		result = append(result, p)
	}
	sortByID(result, func(p shop.Payment) int64 { return p.ID })
	return result, nil
}

func (s *Store) CompletePayment(_ context.Context, authority string, at time.Time) (shop.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.paymentByAuthorityLocked(authority)
	if !ok {
		return shop.Payment{}, false, fmt.Errorf("payment %s: %w", authority, storage.ErrNotFound)
	}
	if p.Status == shop.PaymentSuccess {
		return p, false, nil
	}

	switch p.ProductType {
	case shop.ProductCourse:
		_, err := s.createEnrollmentLocked(catalog.Enrollment{UserID: p.UserID, CourseID: p.ProductID, EnrolledAt: at.UTC()})
		if err != nil && !errors.Is(err, storage.ErrConflict) {
			return shop.Payment{}, false, err
		}
	case shop.ProductBook:
		book, ok := s.books[p.ProductID]
		if !ok {
			return shop.Payment{}, false, fmt.Errorf("book %d: %w", p.ProductID, storage.ErrNotFound)
		}
		if book.Stock > 0 {
			book.Stock--
			s.books[book.ID] = book
		}
		if cart, ok := s.carts[p.UserID]; ok {
			for iid, item := range s.cartItems {
				if item.CartID == cart.ID && item.BookID == book.ID {
					delete(s.cartItems, iid)
				}
			}
		}
		var latest *shop.Order
		for _, order := range s.orders {
			if order.BuyerID != p.UserID || order.Status != shop.OrderPending {
				continue
			}
			if latest == nil || order.ID > latest.ID {
				o := order
				latest = &o
			}
		}
		if latest != nil {
			latest.Status = shop.OrderPaid
			latest.UpdatedAt = at.UTC()
			s.orders[latest.ID] = *latest
		}
	}

	paidAt := at.UTC()
	p.Status = shop.PaymentSuccess
	p.PaidAt = &paidAt
	s.payments[p.ID] = p
	return p, true, nil
}
