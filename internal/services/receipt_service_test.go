package services

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabros/bookstore/internal/models"
	"github.com/supabros/bookstore/internal/store"
)

func TestReceiptService_ReceiptQR(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	service := NewReceiptService(st)

	completed := &models.Order{CustomerEmail: "reader@example.com", TotalAmount: "19.98", Status: models.OrderStatusCompleted}
	require.NoError(t, st.CreateOrder(ctx, completed))
	require.NoError(t, st.CreateOrderItem(ctx, &models.OrderItem{OrderID: completed.ID, BookID: "b1", Quantity: 2, Price: "9.99"}))

	pending := &models.Order{CustomerEmail: "reader@example.com", TotalAmount: "5.00", Status: models.OrderStatusPending}
	require.NoError(t, st.CreateOrder(ctx, pending))

	t.Run("completed order", func(t *testing.T) {
		receipt, err := service.Receipt(ctx, completed.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, receipt.Items)
		assert.Equal(t, "19.98", receipt.TotalAmount)

		data, err := service.ReceiptQR(ctx, completed.ID)
		require.NoError(t, err)
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 256, img.Bounds().Dx())
	})

	t.Run("pending order", func(t *testing.T) {
		_, err := service.ReceiptQR(ctx, pending.ID)
		var ce *ConflictError
		assert.ErrorAs(t, err, &ce)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := service.ReceiptQR(ctx, "missing")
		assert.Equal(t, 404, StatusFor(err))
	})
}
