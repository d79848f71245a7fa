package models

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// Order is a customer purchase. It owns its OrderItems.
type Order struct {
	ID            string      `json:"id" db:"id"`
	CustomerEmail string      `json:"customerEmail" db:"customer_email"`
	TotalAmount   string      `json:"totalAmount" db:"total_amount"`
	Status        OrderStatus `json:"status" db:"status"`
	CreatedAt     time.Time   `json:"createdAt" db:"created_at"`
}

// OrderItem is one cart line. Price is the book price captured at order time.
type OrderItem struct {
	ID       string `json:"id" db:"id"`
	OrderID  string `json:"orderId" db:"order_id"`
	BookID   string `json:"bookId" db:"book_id"`
	Quantity int    `json:"quantity" db:"quantity"`
	Price    string `json:"price" db:"price"`
}
