package replication

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supabros/bookstore/internal/models"
	"github.com/supabros/bookstore/internal/store"
)

func TestMirroredStore_EnqueuesPerTarget(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	targets := []Target{{Driver: "postgres", DSN: "postgres://replica/shop"}, {Driver: "mysql", DSN: "u@tcp(h)/shop"}}
	m := NewMirroredStore(store.NewMemory(), q, targets)

	book := &models.Book{Title: "Dune", Price: "9.99"}
	require.NoError(t, m.CreateBook(ctx, book))

	tasks, err := q.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	var statements []string
	for _, task := range tasks {
		statements = append(statements, task.SQL)
		assert.Equal(t, book.ID, task.Params[0])
	}
	assert.Contains(t, statements, "INSERT INTO books (id, title, description, price, cover_image, download_url, category, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING")
	assert.Contains(t, statements, "INSERT IGNORE INTO books (id, title, description, price, cover_image, download_url, category, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")

	got, err := m.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
}

func TestMirroredStore_FailedWriteIsNotQueued(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	m := NewMirroredStore(store.NewMemory(), q, []Target{{Driver: "sqlite3", DSN: "/tmp/replica.db"}})

	err := m.UpdateOrderStatus(ctx, "missing", models.OrderStatusPending, models.OrderStatusCompleted)
	assert.ErrorIs(t, err, store.ErrNotFound)

	tasks, err := q.List(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMirroredStore_InTx(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	m := NewMirroredStore(store.NewMemory(), q, []Target{{Driver: "sqlite3", DSN: "/tmp/replica.db"}})

	t.Run("rolled back writes are dropped", func(t *testing.T) {
		err := m.InTx(ctx, func(l store.Ledger) error {
			if err := l.CreateOrder(ctx, &models.Order{CustomerEmail: "a@b.c", TotalAmount: "1.00", Status: models.OrderStatusPending}); err != nil {
				return err
			}
			return errors.New("charge declined")
		})
		require.Error(t, err)

		tasks, err := q.List(ctx, "", 10)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("committed writes are queued in order", func(t *testing.T) {
		err := m.InTx(ctx, func(l store.Ledger) error {
			order := &models.Order{CustomerEmail: "a@b.c", TotalAmount: "1.00", Status: models.OrderStatusCompleted}
			if err := l.CreateOrder(ctx, order); err != nil {
				return err
			}
			return l.CreateWalletTransaction(ctx, &models.WalletTransaction{
				Type: models.WalletPaymentReceived, Amount: "1.00", Status: models.WalletStatusCompleted, Description: "sale",
			})
		})
		require.NoError(t, err)

		due, err := q.Due(ctx, 5)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Contains(t, due[0].SQL, "INTO orders")
		assert.Contains(t, due[1].SQL, "INTO wallet_transactions")
	})
}
