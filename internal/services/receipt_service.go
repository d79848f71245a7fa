package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/supabros/bookstore/internal/models"
	"github.com/supabros/bookstore/internal/store"
)

// Receipt is what the QR code on an order confirmation encodes.
type Receipt struct {
	OrderID       string    `json:"orderId"`
	CustomerEmail string    `json:"customerEmail"`
	TotalAmount   string    `json:"totalAmount"`
	Items         int       `json:"items"`
	PurchasedAt   time.Time `json:"purchasedAt"`
}

type ReceiptService struct {
	store store.Reader
	size  int
}

func NewReceiptService(st store.Reader) *ReceiptService {
	return &ReceiptService{store: st, size: 256}
}

func (s *ReceiptService) Receipt(ctx context.Context, orderID string) (*Receipt, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Order not found")
	}
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, conflict("Receipt is only available for completed orders")
	}

	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, it := range items {
		count += it.Quantity
	}

	return &Receipt{
		OrderID:       order.ID,
		CustomerEmail: order.CustomerEmail,
		TotalAmount:   order.TotalAmount,
		Items:         count,
		PurchasedAt:   order.CreatedAt,
	}, nil
}

// ReceiptQR renders the receipt of a completed order as a PNG QR code.
func (s *ReceiptService) ReceiptQR(ctx context.Context, orderID string) ([]byte, error) {
	receipt, err := s.Receipt(ctx, orderID)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(receipt)
	if err != nil {
		return nil, err
	}

	qr, err := qrcode.New(string(jsonData), qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(s.size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
