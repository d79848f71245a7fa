// Package payment charges cards through the configured card networks.
//
// Every gateway reports failure through ChargeResult rather than an error:
// declines, transport failures and malformed responses all come back as
// Success=false with a message that can be shown to the customer verbatim.
package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/supabros/bookstore/internal/models"
)

// Card is a raw card submitted by the customer.
type Card struct {
	Number       string `json:"number" validate:"required"`
	ExpiryMonth  string `json:"expiryMonth" validate:"required"`
	ExpiryYear   string `json:"expiryYear" validate:"required"`
	SecurityCode string `json:"securityCode"`
}

type ChargeRequest struct {
	Amount        decimal.Decimal
	Currency      string
	Email         string
	PaymentMethod models.PaymentMethod
	OrderRef      string
	Card          *Card
}

type ChargeResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
}

func failed(msg string) ChargeResult {
	return ChargeResult{Success: false, Error: msg}
}

// Gateway charges one request. Implementations never panic on bad input and
// never return transport errors directly.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) ChargeResult
}
