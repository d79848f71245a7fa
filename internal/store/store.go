// Package store persists the storefront ledger: books, orders, order items,
// payment transactions, the seller wallet log and admin accounts.
//
// All backends implement Store identically. Status transitions are
// compare-and-set on the expected prior status and the store never retries.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabros/bookstore/internal/config"
	"github.com/supabros/bookstore/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrStatusConflict = errors.New("status changed concurrently")
	ErrDuplicate      = errors.New("duplicate record")
	ErrReferenced     = errors.New("record is still referenced")
)

// Reader is the read side of the ledger.
type Reader interface {
	GetBooks(ctx context.Context) ([]models.Book, error)
	GetBook(ctx context.Context, id string) (*models.Book, error)

	GetOrders(ctx context.Context) ([]models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)

	GetTransactions(ctx context.Context) ([]models.TransactionWithOrder, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	GetTransactionByPaymentIntent(ctx context.Context, intentID string) (*models.Transaction, error)

	GetAdminByUsername(ctx context.Context, username string) (*models.Admin, error)
	CountAdmins(ctx context.Context) (int, error)

	GetWalletTransactions(ctx context.Context) ([]models.WalletTransaction, error)
	GetWalletBalance(ctx context.Context) (models.WalletBalance, error)
}

// Writer is the mutation side of the ledger. Create methods fill in ID and
// CreatedAt when they are empty.
type Writer interface {
	CreateBook(ctx context.Context, book *models.Book) error
	UpdateBook(ctx context.Context, id string, update models.BookUpdate) (*models.Book, error)
	DeleteBook(ctx context.Context, id string) error

	CreateOrder(ctx context.Context, order *models.Order) error
	UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error

	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	UpdateTransactionStatus(ctx context.Context, id string, from, to models.TransactionStatus) error

	CreateAdmin(ctx context.Context, admin *models.Admin) error

	CreateWalletTransaction(ctx context.Context, wtx *models.WalletTransaction) error
}

// Ledger is what a transaction callback sees.
type Ledger interface {
	Reader
	Writer
}

// Store is a Ledger plus atomic grouping of writes.
type Store interface {
	Ledger
	// InTx runs fn against a transactional view. A non-nil error from fn
	// rolls back every write fn made.
	InTx(ctx context.Context, fn func(Ledger) error) error
	Close() error
}

// Open builds the backend named by cfg.Driver.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return OpenPostgres(cfg.DSN)
	case "bolt":
		return OpenBolt(cfg.Path)
	case "memory", "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}
