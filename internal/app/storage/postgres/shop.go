package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/storage"
)

const bookColumns = `id, name, description, price, stock, created_at`

const cartItemSelect = `
	SELECT ci.id, ci.cart_id, ci.book_id, ci.quantity, ci.created_at, b.name AS book_name, b.price AS unit_price
	FROM cart_items ci
	JOIN books b ON b.id = ci.book_id`

const orderColumns = `id, buyer_id, status, total_price, created_at, updated_at`

const orderItemSelect = `
	SELECT oi.id, oi.order_id, COALESCE(oi.book_id, 0) AS book_id, oi.quantity, oi.price,
		COALESCE(b.name, '') AS book_name
	FROM order_items oi
	LEFT JOIN books b ON b.id = oi.book_id`

const paymentColumns = `id, user_id, amount, product_type, product_id, authority, status, cart_added_at, created_at, paid_at`

// --- ShopStore ---------------------------------------------------------------

func (s *Store) CreateBook(ctx context.Context, book shop.Book) (shop.Book, error) {
	book.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO books (name, description, price, stock, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id
	`, book.Name, book.Description, book.Price, book.Stock, book.CreatedAt).Scan(&book.ID)
	if err != nil {
		return shop.Book{}, mapError(err, "book "+book.Name)
	}
	return book, nil
}

func (s *Store) UpdateBook(ctx context.Context, book shop.Book) (shop.Book, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET name = $2, description = $3, price = $4, stock = $5 WHERE id = $1
	`, book.ID, book.Name, book.Description, book.Price, book.Stock)
	if err != nil {
		return shop.Book{}, mapError(err, "book "+book.Name)
	}
	if err := expectRows(result, fmt.Sprintf("book %d", book.ID)); err != nil {
		return shop.Book{}, err
	}
	return s.GetBook(ctx, book.ID)
}

func (s *Store) GetBook(ctx context.Context, id int64) (shop.Book, error) {
	var book shop.Book
	if err := s.db.GetContext(ctx, &book, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id); err != nil {
		return shop.Book{}, mapError(err, fmt.Sprintf("book %d", id))
	}
	return book, nil
}

func (s *Store) ListBooks(ctx context.Context, inStockOnly bool) ([]shop.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books ORDER BY id`
	if inStockOnly {
		query = `SELECT ` + bookColumns + ` FROM books WHERE stock > 0 ORDER BY LOWER(name), id`
	}
	books := []shop.Book{}
	err := s.db.SelectContext(ctx, &books, query)
	return books, err
}

func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result, fmt.Sprintf("book %d", id))
}

func ensureCart(ctx context.Context, q sqlx.ExtContext, userID int64) (shop.Cart, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO carts (user_id, created_at) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING
	`, userID, time.Now().UTC()); err != nil {
		return shop.Cart{}, mapError(err, fmt.Sprintf("user %d", userID))
	}
	var cart shop.Cart
	if err := sqlx.GetContext(ctx, q, &cart, `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`, userID); err != nil {
		return shop.Cart{}, mapError(err, fmt.Sprintf("cart for user %d", userID))
	}
	items := []shop.CartItem{}
	if err := sqlx.SelectContext(ctx, q, &items, cartItemSelect+` WHERE ci.cart_id = $1 ORDER BY ci.id`, cart.ID); err != nil {
		return shop.Cart{}, err
	}
	cart.Items = items
	return cart, nil
}

func (s *Store) GetOrCreateCart(ctx context.Context, userID int64) (shop.Cart, error) {
	return ensureCart(ctx, s.db, userID)
}

func (s *Store) AddCartItem(ctx context.Context, userID, bookID int64, quantity int) (shop.CartItem, error) {
	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return shop.CartItem{}, err
	}
	cart, err := ensureCart(ctx, s.db, userID)
	if err != nil {
		return shop.CartItem{}, err
	}
	var item shop.CartItem
	err = s.db.GetContext(ctx, &item, `
		INSERT INTO cart_items (cart_id, book_id, quantity, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, book_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, cart_id, book_id, quantity, created_at
	`, cart.ID, bookID, quantity, time.Now().UTC())
	if err != nil {
		return shop.CartItem{}, mapError(err, fmt.Sprintf("book %d", bookID))
	}
	item.BookName = book.Name
	item.UnitPrice = book.Price
	return item, nil
}

func (s *Store) Checkout(ctx context.Context, userID int64) (shop.Order, error) {
	var orderID int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		cart, err := ensureCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return storage.ErrEmptyCart
		}
		now := time.Now().UTC()
		var total int64
		for _, item := range cart.Items {
			total += item.Subtotal()
		}
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO orders (buyer_id, status, total_price, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			RETURNING id
		`, userID, string(shop.OrderPending), total, now).Scan(&orderID); err != nil {
			return err
		}
		for _, item := range cart.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, book_id, quantity, price) VALUES ($1, $2, $3, $4)
			`, orderID, item.BookID, item.Quantity, item.UnitPrice); err != nil {
				return mapError(err, fmt.Sprintf("book %d", item.BookID))
			}
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID)
		return err
	})
	if err != nil {
		return shop.Order{}, err
	}
	return s.GetOrder(ctx, orderID)
}

func (s *Store) attachOrderItems(ctx context.Context, orders []shop.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	var items []shop.OrderItem
	if err := s.db.SelectContext(ctx, &items, orderItemSelect+` WHERE oi.order_id = ANY($1) ORDER BY oi.id`, pqInt64Array(ids)); err != nil {
		return err
	}
	byOrder := make(map[int64][]shop.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []shop.OrderItem{}
		}
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (shop.Order, error) {
	var order shop.Order
	if err := s.db.GetContext(ctx, &order, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
		return shop.Order{}, mapError(err, fmt.Sprintf("order %d", id))
	}
	orders := []shop.Order{order}
	if err := s.attachOrderItems(ctx, orders); err != nil {
		return shop.Order{}, err
	}
	return orders[0], nil
}

func (s *Store) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]shop.Order, error) {
	var w where
	if filter.BuyerID != 0 {
		w.add("buyer_id = $%d", filter.BuyerID)
	}
	if filter.Status != "" {
		w.add("status = $%d", string(filter.Status))
	}
	orders := []shop.Order{}
	if err := s.db.SelectContext(ctx, &orders, `SELECT `+orderColumns+` FROM orders`+w.String()+` ORDER BY id DESC`, w.args...); err != nil {
		return nil, err
	}
	if err := s.attachOrderItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status shop.OrderStatus) (shop.Order, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), time.Now().UTC())
	if err != nil {
		return shop.Order{}, err
	}
	if err := expectRows(result, fmt.Sprintf("order %d", id)); err != nil {
		return shop.Order{}, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) CreatePayment(ctx context.Context, payment shop.Payment) (shop.Payment, error) {
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO payments (user_id, amount, product_type, product_id, authority, status, cart_added_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, payment.UserID, payment.Amount, string(payment.ProductType), payment.ProductID, payment.Authority,
		string(payment.Status), payment.CartAddedAt, payment.CreatedAt).Scan(&payment.ID)
	if err != nil {
		return shop.Payment{}, mapError(err, "payment "+payment.Authority)
	}
	return payment, nil
}

func (s *Store) GetPaymentByAuthority(ctx context.Context, authority string) (shop.Payment, error) {
	var p shop.Payment
	if err := s.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE authority = $1`, authority); err != nil {
		return shop.Payment{}, mapError(err, "payment "+authority)
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, filter storage.PaymentFilter) ([]shop.Payment, error) {
	var w where
	if filter.UserID != 0 {
		w.add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		w.add("status = $%d", string(filter.Status))
	}
	if filter.ProductType != "" {
		w.add("product_type = $%d", string(filter.ProductType))
	}
	payments := []shop.Payment{}
	err := s.db.SelectContext(ctx, &payments, `SELECT `+paymentColumns+` FROM payments`+w.String()+` ORDER BY id`, w.args...)
	return payments, err
}

func (s *Store) CompletePayment(ctx context.Context, authority string, at time.Time) (shop.Payment, bool, error) {
	at = at.UTC()
	var (
		payment   shop.Payment
		fulfilled bool
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &payment, `
			SELECT `+paymentColumns+` FROM payments WHERE authority = $1 FOR UPDATE
		`, authority); err != nil {
			return mapError(err, "payment "+authority)
		}
		if payment.Status == shop.PaymentSuccess {
			return nil
		}

		switch payment.ProductType {
		case shop.ProductCourse:
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO enrollments (user_id, course_id, enrolled_at) VALUES ($1, $2, $3)
				ON CONFLICT (user_id, course_id) DO NOTHING
			`, payment.UserID, payment.ProductID, at); err != nil {
				return mapError(err, fmt.Sprintf("course %d", payment.ProductID))
			}
		case shop.ProductBook:
			result, err := tx.ExecContext(ctx, `
				UPDATE books SET stock = GREATEST(stock - 1, 0) WHERE id = $1
			`, payment.ProductID)
			if err != nil {
				return err
			}
			if err := expectRows(result, fmt.Sprintf("book %d", payment.ProductID)); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM cart_items
				WHERE book_id = $1 AND cart_id IN (SELECT id FROM carts WHERE user_id = $2)
			`, payment.ProductID, payment.UserID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE orders SET status = $3, updated_at = $4
				WHERE id = (
					SELECT id FROM orders WHERE buyer_id = $1 AND status = $2 ORDER BY id DESC LIMIT 1
				)
			`, payment.UserID, string(shop.OrderPending), string(shop.OrderPaid), at); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE payments SET status = $2, paid_at = $3 WHERE id = $1
		`, payment.ID, string(shop.PaymentSuccess), at); err != nil {
			return err
		}
		payment.Status = shop.PaymentSuccess
		payment.PaidAt = &at
		fulfilled = true
		return nil
	})
	if err != nil {
		return shop.Payment{}, false, err
	}
	return payment, fulfilled, nil
}
