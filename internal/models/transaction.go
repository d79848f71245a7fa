package models

import (
	"time"
)

type PaymentMethod string

const (
	PaymentMethodMastercard PaymentMethod = "mastercard"
	PaymentMethodVisa       PaymentMethod = "visa"
	PaymentMethodPrepaid    PaymentMethod = "prepaid"
	PaymentMethodGooglePay  PaymentMethod = "google_pay"
	PaymentMethodApplePay   PaymentMethod = "apple_pay"
)

// Valid reports whether m is one of the supported payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodMastercard, PaymentMethodVisa, PaymentMethodPrepaid,
		PaymentMethodGooglePay, PaymentMethodApplePay:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// Transaction records one payment gateway interaction for an order
type Transaction struct {
	ID              string            `json:"id" db:"id"`
	OrderID         string            `json:"orderId" db:"order_id"`
	Amount          string            `json:"amount" db:"amount"`
	PaymentMethod   PaymentMethod     `json:"paymentMethod" db:"payment_method"`
	Status          TransactionStatus `json:"status" db:"status"`
	PaymentIntentID *string           `json:"paymentIntentId" db:"payment_intent_id"`
	CreatedAt       time.Time         `json:"createdAt" db:"created_at"`
}

// OrderSummary is the slice of an order shown next to a transaction in the admin console
type OrderSummary struct {
	ID            string `json:"id"`
	CustomerEmail string `json:"customerEmail"`
	Status        string `json:"status"`
}

// TransactionWithOrder is a transaction joined with its order summary
type TransactionWithOrder struct {
	Transaction
	Order OrderSummary `json:"order"`
}
