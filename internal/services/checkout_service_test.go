package services

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/supabros/bookstore/internal/audit"
	"github.com/supabros/bookstore/internal/models"
	"github.com/supabros/bookstore/internal/payment"
	"github.com/supabros/bookstore/internal/store"
)

type checkoutFixture struct {
	service *CheckoutService
	store   store.Store
	gateway *MockGateway
	books   []*models.Book
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	return newCheckoutFixtureOn(t, store.NewMemory())
}

func newCheckoutFixtureOn(t *testing.T, st store.Store) *checkoutFixture {
	t.Helper()
	ctx := context.Background()

	books := []*models.Book{
		{Title: "The Art of Programming", Description: "d", Price: "50.00", CoverImage: "https://example.com/a.jpg", DownloadURL: "https://example.com/a.pdf", Category: "Technology"},
		{Title: "Mystery Night", Description: "d", Price: "9.99", CoverImage: "https://example.com/b.jpg", DownloadURL: "https://example.com/b.pdf", Category: "Fiction"},
	}
	for _, b := range books {
		require.NoError(t, st.CreateBook(ctx, b))
	}

	gw := new(MockGateway)
	auditLog := audit.NewLoggerTo(log.New(io.Discard, "", 0))
	service := NewCheckoutService(st, gw, NewSessionStore(nil, 0), auditLog, "USD", "http://localhost:5000/checkout")

	return &checkoutFixture{service: service, store: st, gateway: gw, books: books}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func (f *checkoutFixture) assertNothingWritten(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	orders, err := f.store.GetOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	txs, err := f.store.GetTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)

	wtxs, err := f.store.GetWalletTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, wtxs)
}

func TestCheckoutService_CreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("total comes from the catalog", func(t *testing.T) {
		f := newCheckoutFixture(t)

		res, err := f.service.CreateSession(ctx, SessionRequest{
			CustomerEmail: "reader@example.com",
			PaymentMethod: models.PaymentMethodVisa,
			Amount:        decPtr("109.99"),
			Items: []CartItem{
				{BookID: f.books[0].ID, Quantity: 2, Price: dec("50")},
				{BookID: f.books[1].ID, Quantity: 1, Price: dec("9.99")},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "109.99", res.TotalAmount)
		assert.Len(t, res.SessionID, 32)
	})

	t.Run("no items", func(t *testing.T) {
		f := newCheckoutFixture(t)
		_, err := f.service.CreateSession(ctx, SessionRequest{CustomerEmail: "reader@example.com", PaymentMethod: "visa"})
		assert.EqualError(t, err, "No items provided for payment session")
	})

	t.Run("missing email", func(t *testing.T) {
		f := newCheckoutFixture(t)
		_, err := f.service.CreateSession(ctx, SessionRequest{
			PaymentMethod: "visa",
			Items:         []CartItem{{BookID: f.books[0].ID, Quantity: 1, Price: dec("50.00")}},
		})
		assert.EqualError(t, err, "Customer email and payment method are required")
	})

	t.Run("aggregate amount off by more than a cent", func(t *testing.T) {
		f := newCheckoutFixture(t)
		_, err := f.service.CreateSession(ctx, SessionRequest{
			CustomerEmail: "reader@example.com",
			PaymentMethod: "visa",
			Amount:        decPtr("49.98"),
			Items:         []CartItem{{BookID: f.books[0].ID, Quantity: 1, Price: dec("50.00")}},
		})
		assert.EqualError(t, err, "Amount mismatch")
	})

	t.Run("unknown book", func(t *testing.T) {
		f := newCheckoutFixture(t)
		_, err := f.service.CreateSession(ctx, SessionRequest{
			CustomerEmail: "reader@example.com",
			PaymentMethod: "visa",
			Items:         []CartItem{{BookID: "missing", Quantity: 1, Price: dec("1.00")}},
		})
		assert.EqualError(t, err, "Book missing not found")
		assert.Equal(t, 400, StatusFor(err))
	})
}

func TestCheckoutService_PlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("successful checkout records one of everything", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
			return req.Amount.Equal(dec("109.99")) && req.PaymentMethod == models.PaymentMethodMastercard
		})).Return(payment.ChargeResult{Success: true, TransactionID: "gw_123"}).Once()

		res, err := f.service.PlaceOrder(ctx, OrderRequest{
			CustomerEmail: "reader@example.com",
			PaymentMethod: models.PaymentMethodMastercard,
			Items: []CartItem{
				{BookID: f.books[0].ID, Quantity: 2, Price: dec("50.00")},
				{BookID: f.books[1].ID, Quantity: 1, Price: dec("9.99")},
			},
		})
		require.NoError(t, err)
		f.gateway.AssertExpectations(t)

		assert.Equal(t, models.OrderStatusCompleted, res.Order.Status)
		assert.Equal(t, "109.99", res.Order.TotalAmount)
		assert.Equal(t, models.TransactionStatusCompleted, res.Transaction.Status)
		assert.Equal(t, res.Order.TotalAmount, res.Transaction.Amount)
		require.NotNil(t, res.Transaction.PaymentIntentID)
		assert.Equal(t, "gw_123", *res.Transaction.PaymentIntentID)

		orders, _ := f.store.GetOrders(ctx)
		assert.Len(t, orders, 1)

		items, err := f.store.GetOrderItems(ctx, res.Order.ID)
		require.NoError(t, err)
		require.Len(t, items, 2)
		sum := decimal.Zero
		for _, it := range items {
			sum = sum.Add(models.MustAmount(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		assert.True(t, sum.Equal(dec("109.99")))

		txs, _ := f.store.GetTransactions(ctx)
		assert.Len(t, txs, 1)

		wtxs, _ := f.store.GetWalletTransactions(ctx)
		require.Len(t, wtxs, 1)
		assert.Equal(t, models.WalletPaymentReceived, wtxs[0].Type)
		assert.Equal(t, models.WalletStatusCompleted, wtxs[0].Status)
		assert.Equal(t, "109.99", wtxs[0].Amount)
		assert.Equal(t, "Payment for order "+res.Order.ID, wtxs[0].Description)
	})

	t.Run("any price deviation rejects the cart before charging", func(t *testing.T) {
		for _, submitted := range []string{"49.99", "50.01", "0", "500.00"} {
			f := newCheckoutFixture(t)

			_, err := f.service.PlaceOrder(ctx, OrderRequest{
				CustomerEmail: "reader@example.com",
				PaymentMethod: models.PaymentMethodVisa,
				Items: []CartItem{
					{BookID: f.books[1].ID, Quantity: 1, Price: dec("9.99")},
					{BookID: f.books[0].ID, Quantity: 1, Price: dec(submitted)},
				},
			})
			assert.EqualError(t, err, "Price mismatch for book The Art of Programming")
			f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
			f.assertNothingWritten(t)
		}
	})

	t.Run("decline writes nothing and returns gateway text", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.gateway.On("Charge", mock.Anything, mock.Anything).
			Return(payment.ChargeResult{Success: false, Error: "Insufficient funds"}).Once()

		_, err := f.service.PlaceOrder(ctx, OrderRequest{
			CustomerEmail: "reader@example.com",
			PaymentMethod: models.PaymentMethodVisa,
			Items:         []CartItem{{BookID: f.books[0].ID, Quantity: 1, Price: dec("50.00")}},
		})

		var pe *PaymentError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "Insufficient funds", pe.Message)
		f.assertNothingWritten(t)
	})

	t.Run("zero quantity", func(t *testing.T) {
		f := newCheckoutFixture(t)
		_, err := f.service.PlaceOrder(ctx, OrderRequest{
			CustomerEmail: "reader@example.com",
			PaymentMethod: models.PaymentMethodVisa,
			Items:         []CartItem{{BookID: f.books[0].ID, Quantity: 0, Price: dec("50.00")}},
		})
		assert.Error(t, err)
		f.assertNothingWritten(t)
	})

	t.Run("session total must match when sessions are enforced", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.gateway.On("Charge", mock.Anything, mock.Anything).Return(payment.ChargeResult{Success: true, TransactionID: "gw_1"})

		// memory-only fixture: sessions disabled, so an unknown session id is tolerated
		_, err := f.service.PlaceOrder(ctx, OrderRequest{
			CustomerEmail: "reader@example.com",
			PaymentMethod: models.PaymentMethodVisa,
			SessionID:     "deadbeef",
			Items:         []CartItem{{BookID: f.books[0].ID, Quantity: 1, Price: dec("50.00")}},
		})
		assert.NoError(t, err)
	})

	t.Run("stored session total is enforced", func(t *testing.T) {
		f := newCheckoutFixture(t)
		db, redisMock := redismock.NewClientMock()
		f.service.sessions = NewSessionStore(db, time.Minute)

		redisMock.ExpectGet("payment_session:s1").SetVal(`{"totalAmount":"40.00","customerEmail":"reader@example.com","paymentMethod":"visa"}`)
		_, err := f.service.PlaceOrder(ctx, OrderRequest{
			CustomerEmail: "reader@example.com",
			PaymentMethod: models.PaymentMethodVisa,
			SessionID:     "s1",
			Items:         []CartItem{{BookID: f.books[0].ID, Quantity: 1, Price: dec("50.00")}},
		})
		assert.EqualError(t, err, "Amount mismatch")

		redisMock.ExpectGet("payment_session:gone").RedisNil()
		_, err = f.service.PlaceOrder(ctx, OrderRequest{
			CustomerEmail: "reader@example.com",
			PaymentMethod: models.PaymentMethodVisa,
			SessionID:     "gone",
			Items:         []CartItem{{BookID: f.books[0].ID, Quantity: 1, Price: dec("50.00")}},
		})
		assert.EqualError(t, err, "Payment session expired or not found")

		f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
		f.assertNothingWritten(t)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestCheckoutService_ChargeCard(t *testing.T) {
	ctx := context.Background()
	card := &payment.Card{Number: "4111111111111111", ExpiryMonth: "12", ExpiryYear: "2099", SecurityCode: "123"}

	t.Run("approved charge finalizes pending rows", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
			return req.Card != nil && req.Amount.Equal(dec("59.99"))
		})).Return(payment.ChargeResult{Success: true, TransactionID: "cs_1"}).Once()

		res, err := f.service.ChargeCard(ctx, CardChargeRequest{
			Card:          card,
			CustomerEmail: "reader@example.com",
			Amount:        decPtr("59.99"),
			Items: []CartItem{
				{BookID: f.books[0].ID, Quantity: 1, Price: dec("50.00")},
				{BookID: f.books[1].ID, Quantity: 1, Price: dec("9.99")},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "cs_1", res.TransactionID)

		order, err := f.store.GetOrder(ctx, res.OrderID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCompleted, order.Status)

		items, _ := f.store.GetOrderItems(ctx, res.OrderID)
		assert.Len(t, items, 2)

		wtxs, _ := f.store.GetWalletTransactions(ctx)
		require.Len(t, wtxs, 1)
		assert.Equal(t, "Visa payment for order "+res.OrderID, wtxs[0].Description)
	})

	t.Run("declined charge leaves pending order and failed transaction", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.gateway.On("Charge", mock.Anything, mock.Anything).
			Return(payment.ChargeResult{Success: false, Error: "Card declined"}).Once()

		_, err := f.service.ChargeCard(ctx, CardChargeRequest{Card: card, CustomerEmail: "reader@example.com", Amount: decPtr("10.00")})
		assert.EqualError(t, err, "Card declined")

		orders, _ := f.store.GetOrders(ctx)
		require.Len(t, orders, 1)
		assert.Equal(t, models.OrderStatusPending, orders[0].Status)

		txs, _ := f.store.GetTransactions(ctx)
		require.Len(t, txs, 1)
		assert.Equal(t, models.TransactionStatusFailed, txs[0].Status)

		wtxs, _ := f.store.GetWalletTransactions(ctx)
		assert.Empty(t, wtxs)
	})

	t.Run("card details required", func(t *testing.T) {
		f := newCheckoutFixture(t)
		_, err := f.service.ChargeCard(ctx, CardChargeRequest{CustomerEmail: "reader@example.com", Amount: decPtr("10.00")})
		assert.EqualError(t, err, "Card details are required")
		f.assertNothingWritten(t)
	})

	t.Run("locally invalid card writes nothing", func(t *testing.T) {
		tests := []struct {
			name string
			card payment.Card
			want string
		}{
			{"bad luhn", payment.Card{Number: "4111111111111112", ExpiryMonth: "12", ExpiryYear: "2099"}, "Invalid card number"},
			{"expired", payment.Card{Number: "4111111111111111", ExpiryMonth: "01", ExpiryYear: "2020"}, "Card has expired"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newCheckoutFixture(t)
				card := tt.card

				_, err := f.service.ChargeCard(ctx, CardChargeRequest{Card: &card, CustomerEmail: "reader@example.com", Amount: decPtr("10.00")})
				assert.EqualError(t, err, tt.want)
				assert.Equal(t, 400, StatusFor(err))

				f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
				f.assertNothingWritten(t)
			})
		}
	})

	t.Run("sub-cent amount rounds to zero and is rejected", func(t *testing.T) {
		f := newCheckoutFixture(t)

		_, err := f.service.ChargeCard(ctx, CardChargeRequest{Card: card, CustomerEmail: "reader@example.com", Amount: decPtr("0.004")})
		assert.EqualError(t, err, "Amount must be a positive number")

		f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
		f.assertNothingWritten(t)
	})
}

func TestCheckoutService_HostedCheckout(t *testing.T) {
	ctx := context.Background()

	open := func(t *testing.T, f *checkoutFixture) *HostedSessionResult {
		res, err := f.service.CreateHostedSession(ctx, SessionRequest{
			CustomerEmail: "reader@example.com",
			Amount:        decPtr("50.00"),
			Items:         []CartItem{{BookID: f.books[0].ID, Quantity: 1, Price: dec("50.00")}},
		})
		require.NoError(t, err)
		return res
	}

	t.Run("session opens a pending anchor", func(t *testing.T) {
		f := newCheckoutFixture(t)
		res := open(t, f)

		assert.Equal(t, "http://localhost:5000/checkout?sessionId="+res.SessionID, res.CheckoutURL)

		tx, err := f.store.GetTransactionByPaymentIntent(ctx, res.SessionID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusPending, tx.Status)
		assert.Equal(t, models.PaymentMethodMastercard, tx.PaymentMethod)
	})

	t.Run("complete with success", func(t *testing.T) {
		f := newCheckoutFixture(t)
		res := open(t, f)
		f.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
			return req.OrderRef == res.SessionID
		})).Return(payment.ChargeResult{Success: true, TransactionID: "mc_1"}).Once()

		out, err := f.service.CompleteHostedSession(ctx, res.SessionID, true)
		require.NoError(t, err)
		assert.True(t, out.Success)
		assert.Equal(t, "Payment completed", out.Message)

		balance, _ := f.store.GetWalletBalance(ctx)
		assert.True(t, balance.AvailableBalance.Equal(dec("50")))

		_, err = f.service.CompleteHostedSession(ctx, res.SessionID, true)
		var ce *ConflictError
		assert.ErrorAs(t, err, &ce)
	})

	t.Run("complete with failure", func(t *testing.T) {
		f := newCheckoutFixture(t)
		res := open(t, f)

		out, err := f.service.CompleteHostedSession(ctx, res.SessionID, false)
		require.NoError(t, err)
		assert.False(t, out.Success)
		f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)

		tx, _ := f.store.GetTransactionByPaymentIntent(ctx, res.SessionID)
		assert.Equal(t, models.TransactionStatusFailed, tx.Status)
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newCheckoutFixture(t)
		_, err := f.service.CompleteHostedSession(ctx, "nope", true)
		assert.EqualError(t, err, "Transaction not found")
		assert.Equal(t, 404, StatusFor(err))
	})
}

func TestCheckoutService_Refund(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(payment.ChargeResult{Success: true, TransactionID: "gw_9"})

	res, err := f.service.PlaceOrder(ctx, OrderRequest{
		CustomerEmail: "reader@example.com",
		PaymentMethod: models.PaymentMethodVisa,
		Items:         []CartItem{{BookID: f.books[0].ID, Quantity: 1, Price: dec("50.00")}},
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Refund(ctx, res.Transaction.ID))

	tx, _ := f.store.GetTransaction(ctx, res.Transaction.ID)
	assert.Equal(t, models.TransactionStatusRefunded, tx.Status)
	order, _ := f.store.GetOrder(ctx, res.Order.ID)
	assert.Equal(t, models.OrderStatusRefunded, order.Status)

	err = f.service.Refund(ctx, res.Transaction.ID)
	assert.EqualError(t, err, "Transaction already refunded")
	assert.Equal(t, 400, StatusFor(err))

	wtxs, _ := f.store.GetWalletTransactions(ctx)
	refunds := 0
	for _, w := range wtxs {
		if w.Type == models.WalletRefundIssued {
			refunds++
		}
	}
	assert.Equal(t, 1, refunds)

	balance, _ := f.store.GetWalletBalance(ctx)
	assert.True(t, balance.AvailableBalance.IsZero())

	err = f.service.Refund(ctx, "missing")
	assert.Equal(t, 404, StatusFor(err))
}

func TestCheckoutService_ConcurrentRefund(t *testing.T) {
	ctx := context.Background()

	bolt, err := store.OpenBolt(filepath.Join(t.TempDir(), "ledger.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	backends := map[string]store.Store{
		"memory": store.NewMemory(),
		"bolt":   bolt,
	}

	for name, st := range backends {
		t.Run(name, func(t *testing.T) {
			f := newCheckoutFixtureOn(t, st)
			f.gateway.On("Charge", mock.Anything, mock.Anything).Return(payment.ChargeResult{Success: true, TransactionID: "gw_race"})

			res, err := f.service.PlaceOrder(ctx, OrderRequest{
				CustomerEmail: "reader@example.com",
				PaymentMethod: models.PaymentMethodVisa,
				Items:         []CartItem{{BookID: f.books[0].ID, Quantity: 1, Price: dec("50.00")}},
			})
			require.NoError(t, err)

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := f.service.Refund(ctx, res.Transaction.ID); err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
					} else {
						assert.Equal(t, 400, StatusFor(err), err.Error())
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, succeeded)

			wtxs, err := f.store.GetWalletTransactions(ctx)
			require.NoError(t, err)
			refunds := 0
			for _, w := range wtxs {
				if w.Type == models.WalletRefundIssued {
					refunds++
				}
			}
			assert.Equal(t, 1, refunds)
			assert.Len(t, wtxs, 2)

			balance, _ := f.store.GetWalletBalance(ctx)
			assert.True(t, balance.AvailableBalance.IsZero(), balance.AvailableBalance.String())
		})
	}
}
