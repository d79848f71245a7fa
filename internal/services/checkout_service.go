package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/supabros/bookstore/internal/audit"
	"github.com/supabros/bookstore/internal/models"
	"github.com/supabros/bookstore/internal/payment"
	"github.com/supabros/bookstore/internal/store"
)

// amountTolerance is how far a client-submitted cart total may drift from the
// server total before the cart is rejected.
var amountTolerance = decimal.New(1, -2)

// CartItem is one line as submitted by the client. Price is what the client
// believes the book costs and must match the catalog exactly.
type CartItem struct {
	BookID   string          `json:"bookId"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// SessionRequest is the body of both create-session endpoints.
type SessionRequest struct {
	Items         []CartItem           `json:"items"`
	CustomerEmail string               `json:"customerEmail"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	Amount        *decimal.Decimal     `json:"amount"`
	Currency      string               `json:"currency"`
}

type SessionResult struct {
	SessionID   string `json:"sessionId"`
	TotalAmount string `json:"totalAmount"`
}

type OrderRequest struct {
	Items         []CartItem           `json:"items"`
	CustomerEmail string               `json:"customerEmail"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	SessionID     string               `json:"sessionId"`
	Amount        *decimal.Decimal     `json:"amount"`
	Currency      string               `json:"currency"`
}

type OrderResult struct {
	Order       models.Order       `json:"order"`
	Transaction models.Transaction `json:"transaction"`
}

// CardChargeRequest is a direct card charge. Items are optional; without
// them the charge is for Amount alone.
type CardChargeRequest struct {
	Card          *payment.Card    `json:"card"`
	Amount        *decimal.Decimal `json:"amount"`
	Currency      string           `json:"currency"`
	CustomerEmail string           `json:"customerEmail"`
	Items         []CartItem       `json:"items"`
}

type CardChargeResult struct {
	TransactionID string `json:"transactionId"`
	OrderID       string `json:"orderId"`
}

type HostedSessionResult struct {
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
}

type HostedCompletion struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// pricedLine is a validated cart line priced from the catalog.
type pricedLine struct {
	book     *models.Book
	quantity int
	price    decimal.Decimal
}

// CheckoutService validates carts against the catalog, charges the gateway
// and records the result in the ledger.
type CheckoutService struct {
	store       store.Store
	gateway     payment.Gateway
	sessions    *SessionStore
	audit       *audit.Logger
	validator   *ValidationHelper
	currency    string
	checkoutURL string
	now         func() time.Time
}

func NewCheckoutService(st store.Store, gw payment.Gateway, sessions *SessionStore, auditLog *audit.Logger, currency, checkoutURL string) *CheckoutService {
	if currency == "" {
		currency = "USD"
	}
	return &CheckoutService{
		store:       st,
		gateway:     gw,
		sessions:    sessions,
		audit:       auditLog,
		validator:   NewValidationHelper(),
		currency:    currency,
		checkoutURL: checkoutURL,
		now:         time.Now,
	}
}

// CreateSession prices the cart and remembers the total so that the order
// placed against the session must match it.
func (s *CheckoutService) CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	if len(req.Items) == 0 {
		return nil, invalid("No items provided for payment session")
	}
	if req.CustomerEmail == "" || req.PaymentMethod == "" {
		return nil, invalid("Customer email and payment method are required")
	}
	if err := s.checkEmail(req.CustomerEmail); err != nil {
		return nil, err
	}

	_, total, err := s.priceCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if err := checkAmount(req.Amount, total); err != nil {
		return nil, err
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	sess := PaymentSession{
		TotalAmount:   models.FormatAmount(total),
		CustomerEmail: req.CustomerEmail,
		PaymentMethod: req.PaymentMethod,
	}
	if err := s.sessions.Save(ctx, id, sess); err != nil {
		log.Printf("[CHECKOUT] Session %s not stored, orders will not be checked against it: %v", id, err)
	}

	log.Printf("[CHECKOUT] Payment session %s created for %s, total %s", id, req.CustomerEmail, sess.TotalAmount)
	return &SessionResult{SessionID: id, TotalAmount: sess.TotalAmount}, nil
}

// PlaceOrder runs the default flow: validate, charge, then record order,
// items, transaction and wallet credit in one store transaction.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if len(req.Items) == 0 {
		return nil, invalid("No items provided for payment session")
	}
	if req.CustomerEmail == "" || req.PaymentMethod == "" {
		return nil, invalid("Customer email and payment method are required")
	}
	if err := s.checkEmail(req.CustomerEmail); err != nil {
		return nil, err
	}

	lines, total, err := s.priceCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if err := checkAmount(req.Amount, total); err != nil {
		return nil, err
	}
	if err := s.checkSession(ctx, req.SessionID, total); err != nil {
		return nil, err
	}

	orderRef := req.SessionID
	if orderRef == "" {
		if orderRef, err = newSessionID(); err != nil {
			return nil, err
		}
	}

	amount := models.FormatAmount(total)
	result := s.gateway.Charge(ctx, payment.ChargeRequest{
		Amount:        total,
		Currency:      s.currency,
		Email:         req.CustomerEmail,
		PaymentMethod: req.PaymentMethod,
		OrderRef:      orderRef,
	})
	s.audit.LogCharge(orderRef, string(req.PaymentMethod), amount, result.TransactionID, result.Success, result.Error)
	if !result.Success {
		log.Printf("[CHECKOUT] Charge declined for %s: %s", orderRef, result.Error)
		return nil, &PaymentError{Message: result.Error}
	}

	var out OrderResult
	err = s.store.InTx(ctx, func(l store.Ledger) error {
		out.Order = models.Order{
			CustomerEmail: req.CustomerEmail,
			TotalAmount:   amount,
			Status:        models.OrderStatusCompleted,
		}
		if err := l.CreateOrder(ctx, &out.Order); err != nil {
			return err
		}
		if err := createItems(ctx, l, out.Order.ID, lines); err != nil {
			return err
		}

		intent := result.TransactionID
		out.Transaction = models.Transaction{
			OrderID:         out.Order.ID,
			Amount:          amount,
			PaymentMethod:   req.PaymentMethod,
			Status:          models.TransactionStatusCompleted,
			PaymentIntentID: &intent,
		}
		if err := l.CreateTransaction(ctx, &out.Transaction); err != nil {
			return err
		}

		return l.CreateWalletTransaction(ctx, &models.WalletTransaction{
			Type:        models.WalletPaymentReceived,
			Amount:      amount,
			Status:      models.WalletStatusCompleted,
			Description: fmt.Sprintf("Payment for order %s", out.Order.ID),
		})
	})
	if err != nil {
		// The customer has been charged. The audit line above carries the
		// gateway id needed to reconcile by hand.
		s.audit.LogError("RECORD", result.TransactionID, err)
		log.Printf("[CHECKOUT] Recording charge %s failed: %v", result.TransactionID, err)
		return nil, err
	}

	if req.SessionID != "" {
		if err := s.sessions.Delete(ctx, req.SessionID); err != nil {
			log.Printf("[CHECKOUT] Failed to drop session %s: %v", req.SessionID, err)
		}
	}

	s.audit.LogOrderRecorded(out.Order.ID, out.Transaction.ID, amount)
	log.Printf("[CHECKOUT] Order %s completed, %s via %s", out.Order.ID, amount, req.PaymentMethod)
	return &out, nil
}

// ChargeCard writes a pending order and transaction before charging the card
// so a failed or interrupted charge leaves a trail.
func (s *CheckoutService) ChargeCard(ctx context.Context, req CardChargeRequest) (*CardChargeResult, error) {
	if req.Card == nil || req.Card.Number == "" || req.Card.ExpiryMonth == "" || req.Card.ExpiryYear == "" {
		return nil, invalid("Card details are required")
	}
	if err := payment.ValidateCard(*req.Card, s.now()); err != nil {
		return nil, invalid(err.Error())
	}
	if req.CustomerEmail == "" {
		return nil, invalid("Amount and customer email are required")
	}
	if err := s.checkEmail(req.CustomerEmail); err != nil {
		return nil, err
	}

	var (
		lines []pricedLine
		total decimal.Decimal
		err   error
	)
	if len(req.Items) > 0 {
		if lines, total, err = s.priceCart(ctx, req.Items); err != nil {
			return nil, err
		}
		if err := checkAmount(req.Amount, total); err != nil {
			return nil, err
		}
	} else {
		if req.Amount == nil {
			return nil, invalid("Amount and customer email are required")
		}
		total = req.Amount.Round(2)
		if !total.IsPositive() {
			return nil, invalid("Amount must be a positive number")
		}
	}

	amount := models.FormatAmount(total)
	order, tx, err := s.openPending(ctx, req.CustomerEmail, models.PaymentMethodVisa, amount, lines, nil)
	if err != nil {
		return nil, err
	}

	result := s.gateway.Charge(ctx, payment.ChargeRequest{
		Amount:        total,
		Currency:      s.currency,
		Email:         req.CustomerEmail,
		PaymentMethod: models.PaymentMethodVisa,
		OrderRef:      order.ID,
		Card:          req.Card,
	})
	s.audit.LogCharge(order.ID, string(models.PaymentMethodVisa), amount, result.TransactionID, result.Success, result.Error)

	if !result.Success {
		if err := s.store.UpdateTransactionStatus(ctx, tx.ID, models.TransactionStatusPending, models.TransactionStatusFailed); err != nil {
			log.Printf("[CHECKOUT] Failed to mark transaction %s failed: %v", tx.ID, err)
		}
		return nil, &PaymentError{Message: result.Error}
	}

	if err := s.finalize(ctx, tx, fmt.Sprintf("Visa payment for order %s", order.ID)); err != nil {
		s.audit.LogError("RECORD", result.TransactionID, err)
		return nil, err
	}

	s.audit.LogOrderRecorded(order.ID, tx.ID, amount)
	return &CardChargeResult{TransactionID: result.TransactionID, OrderID: order.ID}, nil
}

// CreateHostedSession opens a Mastercard hosted checkout. The pending
// transaction is keyed by the session id so Complete can find it.
func (s *CheckoutService) CreateHostedSession(ctx context.Context, req SessionRequest) (*HostedSessionResult, error) {
	if len(req.Items) == 0 {
		return nil, invalid("No items provided for payment session")
	}
	if req.CustomerEmail == "" {
		return nil, invalid("Customer email required")
	}
	if err := s.checkEmail(req.CustomerEmail); err != nil {
		return nil, err
	}

	lines, total, err := s.priceCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if err := checkAmount(req.Amount, total); err != nil {
		return nil, err
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	if _, _, err := s.openPending(ctx, req.CustomerEmail, models.PaymentMethodMastercard, models.FormatAmount(total), lines, &id); err != nil {
		return nil, err
	}

	log.Printf("[CHECKOUT] Hosted checkout session %s opened for %s", id, req.CustomerEmail)
	return &HostedSessionResult{
		SessionID:   id,
		CheckoutURL: fmt.Sprintf("%s?sessionId=%s", s.checkoutURL, id),
	}, nil
}

// CompleteHostedSession finalizes a hosted checkout. succeeded is the
// outcome the checkout page reported; a reported success is confirmed with
// the gateway before anything is credited.
func (s *CheckoutService) CompleteHostedSession(ctx context.Context, sessionID string, succeeded bool) (*HostedCompletion, error) {
	if sessionID == "" {
		return nil, invalid("sessionId required")
	}

	tx, err := s.store.GetTransactionByPaymentIntent(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Transaction not found")
	}
	if err != nil {
		return nil, err
	}
	if tx.Status != models.TransactionStatusPending {
		return nil, conflict("Payment session already completed")
	}

	if succeeded {
		order, err := s.store.GetOrder(ctx, tx.OrderID)
		if err != nil {
			return nil, err
		}

		amount := models.MustAmount(tx.Amount)
		result := s.gateway.Charge(ctx, payment.ChargeRequest{
			Amount:        amount,
			Currency:      s.currency,
			Email:         order.CustomerEmail,
			PaymentMethod: models.PaymentMethodMastercard,
			OrderRef:      sessionID,
		})
		s.audit.LogCharge(sessionID, string(models.PaymentMethodMastercard), tx.Amount, result.TransactionID, result.Success, result.Error)

		if result.Success {
			err := s.finalize(ctx, tx, fmt.Sprintf("Payment for order %s", tx.OrderID))
			if errors.Is(err, store.ErrStatusConflict) {
				return nil, conflict("Payment session already completed")
			}
			if err != nil {
				s.audit.LogError("RECORD", result.TransactionID, err)
				return nil, err
			}
			s.audit.LogOrderRecorded(tx.OrderID, tx.ID, tx.Amount)
			return &HostedCompletion{Success: true, Message: "Payment completed"}, nil
		}
		log.Printf("[CHECKOUT] Hosted session %s declined: %s", sessionID, result.Error)
	}

	err = s.store.UpdateTransactionStatus(ctx, tx.ID, models.TransactionStatusPending, models.TransactionStatusFailed)
	if errors.Is(err, store.ErrStatusConflict) {
		return nil, conflict("Payment session already completed")
	}
	if err != nil {
		return nil, err
	}
	return &HostedCompletion{Success: false, Message: "Payment failed"}, nil
}

// Refund reverses a completed transaction. The status change is a
// compare-and-set, so of two concurrent refunds only one writes.
func (s *CheckoutService) Refund(ctx context.Context, transactionID string) error {
	var refunded *models.Transaction

	err := s.store.InTx(ctx, func(l store.Ledger) error {
		tx, err := l.GetTransaction(ctx, transactionID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Transaction not found")
		}
		if err != nil {
			return err
		}

		switch tx.Status {
		case models.TransactionStatusCompleted:
		case models.TransactionStatusRefunded:
			return conflict("Transaction already refunded")
		default:
			return conflict("Only completed transactions can be refunded")
		}

		err = l.UpdateTransactionStatus(ctx, tx.ID, models.TransactionStatusCompleted, models.TransactionStatusRefunded)
		if errors.Is(err, store.ErrStatusConflict) {
			return conflict("Transaction already refunded")
		}
		if err != nil {
			return err
		}

		err = l.UpdateOrderStatus(ctx, tx.OrderID, models.OrderStatusCompleted, models.OrderStatusRefunded)
		if errors.Is(err, store.ErrStatusConflict) {
			return conflict("Order is not in a refundable state")
		}
		if err != nil {
			return err
		}

		refunded = tx
		return l.CreateWalletTransaction(ctx, &models.WalletTransaction{
			Type:        models.WalletRefundIssued,
			Amount:      tx.Amount,
			Status:      models.WalletStatusCompleted,
			Description: fmt.Sprintf("Refund for transaction %s", tx.ID),
		})
	})
	if err != nil {
		return err
	}

	s.audit.LogRefund(refunded.OrderID, refunded.ID, refunded.Amount)
	log.Printf("[CHECKOUT] Transaction %s refunded", refunded.ID)
	return nil
}

// priceCart re-prices every line from the catalog. Any unknown book, bad
// quantity or price deviation rejects the whole cart.
func (s *CheckoutService) priceCart(ctx context.Context, items []CartItem) ([]pricedLine, decimal.Decimal, error) {
	lines := make([]pricedLine, 0, len(items))
	total := decimal.Zero

	for _, item := range items {
		if item.BookID == "" {
			return nil, decimal.Zero, invalid("Every item needs a bookId")
		}
		book, err := s.store.GetBook(ctx, item.BookID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, decimal.Zero, invalid(fmt.Sprintf("Book %s not found", item.BookID))
		}
		if err != nil {
			return nil, decimal.Zero, err
		}
		if item.Quantity < 1 {
			return nil, decimal.Zero, invalid(fmt.Sprintf("Invalid quantity for book %s", book.Title))
		}

		price := models.MustAmount(book.Price)
		if !item.Price.Equal(price) {
			return nil, decimal.Zero, invalid(fmt.Sprintf("Price mismatch for book %s", book.Title))
		}

		lines = append(lines, pricedLine{book: book, quantity: item.Quantity, price: price})
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	return lines, total, nil
}

func (s *CheckoutService) checkEmail(email string) error {
	if err := s.validator.ValidateVar(strings.TrimSpace(email), "email"); err != nil {
		return invalid("Invalid customer email")
	}
	return nil
}

// checkSession enforces the total stored by CreateSession. Without Redis
// sessions cannot be checked and the order proceeds on the recomputed total.
func (s *CheckoutService) checkSession(ctx context.Context, id string, total decimal.Decimal) error {
	if id == "" {
		return nil
	}

	sess, err := s.sessions.Get(ctx, id)
	switch {
	case errors.Is(err, ErrSessionsDisabled):
		log.Printf("[CHECKOUT] Session %s not checked, session store unavailable", id)
		return nil
	case errors.Is(err, ErrSessionNotFound):
		return invalid("Payment session expired or not found")
	case err != nil:
		log.Printf("[CHECKOUT] Session %s lookup failed, continuing unchecked: %v", id, err)
		return nil
	}

	if !models.MustAmount(sess.TotalAmount).Equal(total) {
		return invalid("Amount mismatch")
	}
	return nil
}

// openPending writes the reconciliation anchor for the pending-first flows.
func (s *CheckoutService) openPending(ctx context.Context, email string, method models.PaymentMethod, amount string, lines []pricedLine, intent *string) (*models.Order, *models.Transaction, error) {
	order := &models.Order{CustomerEmail: email, TotalAmount: amount, Status: models.OrderStatusPending}
	tx := &models.Transaction{Amount: amount, PaymentMethod: method, Status: models.TransactionStatusPending, PaymentIntentID: intent}

	err := s.store.InTx(ctx, func(l store.Ledger) error {
		if err := l.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := createItems(ctx, l, order.ID, lines); err != nil {
			return err
		}
		tx.OrderID = order.ID
		return l.CreateTransaction(ctx, tx)
	})
	if err != nil {
		return nil, nil, err
	}
	return order, tx, nil
}

// finalize flips a pending transaction and its order to completed and
// credits the wallet.
func (s *CheckoutService) finalize(ctx context.Context, tx *models.Transaction, description string) error {
	return s.store.InTx(ctx, func(l store.Ledger) error {
		if err := l.UpdateTransactionStatus(ctx, tx.ID, models.TransactionStatusPending, models.TransactionStatusCompleted); err != nil {
			return err
		}
		if err := l.UpdateOrderStatus(ctx, tx.OrderID, models.OrderStatusPending, models.OrderStatusCompleted); err != nil {
			return err
		}
		return l.CreateWalletTransaction(ctx, &models.WalletTransaction{
			Type:        models.WalletPaymentReceived,
			Amount:      tx.Amount,
			Status:      models.WalletStatusCompleted,
			Description: description,
		})
	})
}

func createItems(ctx context.Context, l store.Ledger, orderID string, lines []pricedLine) error {
	for _, line := range lines {
		item := &models.OrderItem{
			OrderID:  orderID,
			BookID:   line.book.ID,
			Quantity: line.quantity,
			Price:    models.FormatAmount(line.price),
		}
		if err := l.CreateOrderItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func checkAmount(submitted *decimal.Decimal, total decimal.Decimal) error {
	if submitted == nil {
		return nil
	}
	if submitted.Sub(total).Abs().GreaterThan(amountTolerance) {
		return invalid("Amount mismatch")
	}
	return nil
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
