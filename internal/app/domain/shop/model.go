// Package shop models the book store, carts, orders and payments.
package shop

import "time"

// Book is a physical product with tracked stock.
type Book struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       int64     `json:"price" db:"price"`
	Stock       int       `json:"stock" db:"stock"`
	ShortCode   string    `json:"short_code,omitempty" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Cart belongs to exactly one user.
type Cart struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"user" db:"user_id"`
	Items     []CartItem `json:"items" db:"-"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Total sums item subtotals.
func (c Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

// CartItem is unique per (cart, book).
type CartItem struct {
	ID        int64     `json:"id" db:"id"`
	CartID    int64     `json:"cart" db:"cart_id"`
	BookID    int64     `json:"book" db:"book_id"`
	BookName  string    `json:"book_name,omitempty" db:"book_name"`
	UnitPrice int64     `json:"unit_price" db:"unit_price"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (i CartItem) Subtotal() int64 { return i.UnitPrice * int64(i.Quantity) }

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderPaid       OrderStatus = "paid"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderProcessing, OrderShipped, OrderCompleted, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// Order snapshots a checked-out cart.
type Order struct {
	ID         int64       `json:"id" db:"id"`
	BuyerID    int64       `json:"buyer" db:"buyer_id"`
	Status     OrderStatus `json:"status" db:"status"`
	TotalPrice int64       `json:"total_price" db:"total_price"`
	Items      []OrderItem `json:"items" db:"-"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderItem carries the book price at checkout time.
type OrderItem struct {
	ID       int64  `json:"id" db:"id"`
	OrderID  int64  `json:"order" db:"order_id"`
	BookID   int64  `json:"book" db:"book_id"`
	BookName string `json:"book_name,omitempty" db:"book_name"`
	Quantity int    `json:"quantity" db:"quantity"`
	Price    int64  `json:"price" db:"price"`
}

// ProductType names what a payment buys.
type ProductType string

const (
	ProductCourse ProductType = "course"
	ProductBook   ProductType = "book"
)

func (p ProductType) Valid() bool { return p == ProductCourse || p == ProductBook }

// PaymentStatus is the gateway outcome.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment is a gateway transaction for one product.
type Payment struct {
	ID          int64         `json:"id" db:"id"`
	UserID      int64         `json:"user" db:"user_id"`
	Amount      int64         `json:"amount" db:"amount"`
	ProductType ProductType   `json:"product_type" db:"product_type"`
	ProductID   int64         `json:"product_id" db:"product_id"`
	Authority   string        `json:"authority" db:"authority"`
	Status      PaymentStatus `json:"status" db:"status"`
	CartAddedAt *time.Time    `json:"-" db:"cart_added_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	PaidAt      *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
}
