package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/supabros/bookstore/internal/models"
)

var (
	booksBucket      = []byte("books")
	ordersBucket     = []byte("orders")
	itemsBucket      = []byte("order_items")
	txBucket         = []byte("transactions")
	walletBucket     = []byte("wallet_transactions")
	adminsBucket     = []byte("admins") // keyed by username
	allLedgerBuckets = [][]byte{booksBucket, ordersBucket, itemsBucket, txBucket, walletBucket, adminsBucket}
)

// BoltStore keeps the ledger in a single BoltDB file. One bucket per entity,
// JSON values keyed by id.
type BoltStore struct {
	boltLedger
}

// boltLedger runs each call in its own bolt transaction, or inside tx when set.
type boltLedger struct {
	db *bolt.DB
	tx *bolt.Tx
}

func OpenBolt(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allLedgerBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{boltLedger{db: db}}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// InTx runs fn inside one read-write bolt transaction. Bolt allows a single
// writer at a time.
func (s *BoltStore) InTx(ctx context.Context, fn func(Ledger) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltLedger{db: s.db, tx: tx})
	})
}

func (l *boltLedger) view(fn func(*bolt.Tx) error) error {
	if l.tx != nil {
		return fn(l.tx)
	}
	return l.db.View(fn)
}

func (l *boltLedger) update(fn func(*bolt.Tx) error) error {
	if l.tx != nil {
		return fn(l.tx)
	}
	return l.db.Update(fn)
}

func getJSON(tx *bolt.Tx, bucket []byte, key string, v any) error {
	raw := tx.Bucket(bucket).Get([]byte(key))
	if raw == nil {
		return ErrNotFound
	}
	return json.Unmarshal(raw, v)
}

func putJSON(tx *bolt.Tx, bucket []byte, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), raw)
}

func listJSON[T any](tx *bolt.Tx, bucket []byte, keep func(T) bool) ([]T, error) {
	out := []T{}
	err := tx.Bucket(bucket).ForEach(func(k, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}
		if keep == nil || keep(item) {
			out = append(out, item)
		}
		return nil
	})
	return out, err
}

func sortNewest[T any](items []T, createdAt func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := createdAt(items[i]), createdAt(items[j])
		if ti.Equal(tj) {
			return id(items[i]) > id(items[j])
		}
		return ti.After(tj)
	})
}

func (l *boltLedger) GetBooks(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	err := l.view(func(tx *bolt.Tx) error {
		var err error
		books, err = listJSON[models.Book](tx, booksBucket, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortNewest(books, func(b models.Book) time.Time { return b.CreatedAt }, func(b models.Book) string { return b.ID })
	return books, nil
}

func (l *boltLedger) GetBook(ctx context.Context, id string) (*models.Book, error) {
	var b models.Book
	if err := l.view(func(tx *bolt.Tx) error { return getJSON(tx, booksBucket, id, &b) }); err != nil {
		return nil, err
	}
	return &b, nil
}

func (l *boltLedger) CreateBook(ctx context.Context, book *models.Book) error {
	stamp(&book.ID, &book.CreatedAt)
	return l.update(func(tx *bolt.Tx) error {
		if tx.Bucket(booksBucket).Get([]byte(book.ID)) != nil {
			return ErrDuplicate
		}
		return putJSON(tx, booksBucket, book.ID, book)
	})
}

func (l *boltLedger) UpdateBook(ctx context.Context, id string, update models.BookUpdate) (*models.Book, error) {
	var b models.Book
	err := l.update(func(tx *bolt.Tx) error {
		if err := getJSON(tx, booksBucket, id, &b); err != nil {
			return err
		}
		update.Apply(&b)
		return putJSON(tx, booksBucket, id, &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (l *boltLedger) DeleteBook(ctx context.Context, id string) error {
	return l.update(func(tx *bolt.Tx) error {
		if tx.Bucket(booksBucket).Get([]byte(id)) == nil {
			return ErrNotFound
		}
		refs, err := listJSON(tx, itemsBucket, func(it models.OrderItem) bool { return it.BookID == id })
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			return ErrReferenced
		}
		return tx.Bucket(booksBucket).Delete([]byte(id))
	})
}

func (l *boltLedger) GetOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := l.view(func(tx *bolt.Tx) error {
		var err error
		orders, err = listJSON[models.Order](tx, ordersBucket, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortNewest(orders, func(o models.Order) time.Time { return o.CreatedAt }, func(o models.Order) string { return o.ID })
	return orders, nil
}

func (l *boltLedger) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := l.view(func(tx *bolt.Tx) error { return getJSON(tx, ordersBucket, id, &o) }); err != nil {
		return nil, err
	}
	return &o, nil
}

func (l *boltLedger) CreateOrder(ctx context.Context, order *models.Order) error {
	stamp(&order.ID, &order.CreatedAt)
	return l.update(func(tx *bolt.Tx) error {
		if tx.Bucket(ordersBucket).Get([]byte(order.ID)) != nil {
			return ErrDuplicate
		}
		return putJSON(tx, ordersBucket, order.ID, order)
	})
}

func (l *boltLedger) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	return l.update(func(tx *bolt.Tx) error {
		var o models.Order
		if err := getJSON(tx, ordersBucket, id, &o); err != nil {
			return err
		}
		if o.Status != from {
			return ErrStatusConflict
		}
		o.Status = to
		return putJSON(tx, ordersBucket, id, &o)
	})
}

func (l *boltLedger) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return l.update(func(tx *bolt.Tx) error {
		if tx.Bucket(ordersBucket).Get([]byte(item.OrderID)) == nil {
			return ErrNotFound
		}
		return putJSON(tx, itemsBucket, item.ID, item)
	})
}

func (l *boltLedger) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := l.view(func(tx *bolt.Tx) error {
		var err error
		items, err = listJSON(tx, itemsBucket, func(it models.OrderItem) bool { return it.OrderID == orderID })
		return err
	})
	return items, err
}

func (l *boltLedger) GetTransactions(ctx context.Context) ([]models.TransactionWithOrder, error) {
	var out []models.TransactionWithOrder
	err := l.view(func(tx *bolt.Tx) error {
		txs, err := listJSON[models.Transaction](tx, txBucket, nil)
		if err != nil {
			return err
		}
		sortNewest(txs, func(t models.Transaction) time.Time { return t.CreatedAt }, func(t models.Transaction) string { return t.ID })

		out = make([]models.TransactionWithOrder, 0, len(txs))
		for _, t := range txs {
			row := models.TransactionWithOrder{Transaction: t}
			var o models.Order
			if err := getJSON(tx, ordersBucket, t.OrderID, &o); err == nil {
				row.Order = models.OrderSummary{ID: o.ID, CustomerEmail: o.CustomerEmail, Status: string(o.Status)}
			}
			out = append(out, row)
		}
		return nil
	})
	return out, err
}

func (l *boltLedger) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var t models.Transaction
	if err := l.view(func(tx *bolt.Tx) error { return getJSON(tx, txBucket, id, &t) }); err != nil {
		return nil, err
	}
	return &t, nil
}

func (l *boltLedger) GetTransactionByPaymentIntent(ctx context.Context, intentID string) (*models.Transaction, error) {
	var found []models.Transaction
	err := l.view(func(tx *bolt.Tx) error {
		var err error
		found, err = listJSON(tx, txBucket, func(t models.Transaction) bool {
			return t.PaymentIntentID != nil && *t.PaymentIntentID == intentID
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (l *boltLedger) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	stamp(&t.ID, &t.CreatedAt)
	return l.update(func(tx *bolt.Tx) error {
		if tx.Bucket(ordersBucket).Get([]byte(t.OrderID)) == nil {
			return ErrNotFound
		}
		return putJSON(tx, txBucket, t.ID, t)
	})
}

func (l *boltLedger) UpdateTransactionStatus(ctx context.Context, id string, from, to models.TransactionStatus) error {
	return l.update(func(tx *bolt.Tx) error {
		var t models.Transaction
		if err := getJSON(tx, txBucket, id, &t); err != nil {
			return err
		}
		if t.Status != from {
			return ErrStatusConflict
		}
		t.Status = to
		return putJSON(tx, txBucket, id, &t)
	})
}

// adminRecord keeps the password hash, which models.Admin hides from JSON.
type adminRecord struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
}

func (l *boltLedger) GetAdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var rec adminRecord
	if err := l.view(func(tx *bolt.Tx) error { return getJSON(tx, adminsBucket, username, &rec) }); err != nil {
		return nil, err
	}
	return &models.Admin{ID: rec.ID, Username: rec.Username, Password: rec.Password, CreatedAt: rec.CreatedAt}, nil
}

func (l *boltLedger) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := l.view(func(tx *bolt.Tx) error {
		c := tx.Bucket(adminsBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (l *boltLedger) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	return l.update(func(tx *bolt.Tx) error {
		if tx.Bucket(adminsBucket).Get([]byte(admin.Username)) != nil {
			return ErrDuplicate
		}
		stamp(&admin.ID, &admin.CreatedAt)
		return putJSON(tx, adminsBucket, admin.Username, adminRecord{
			ID: admin.ID, Username: admin.Username, Password: admin.Password, CreatedAt: admin.CreatedAt,
		})
	})
}

func (l *boltLedger) GetWalletTransactions(ctx context.Context) ([]models.WalletTransaction, error) {
	var wtxs []models.WalletTransaction
	err := l.view(func(tx *bolt.Tx) error {
		var err error
		wtxs, err = listJSON[models.WalletTransaction](tx, walletBucket, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortNewest(wtxs, func(w models.WalletTransaction) time.Time { return w.CreatedAt }, func(w models.WalletTransaction) string { return w.ID })
	return wtxs, nil
}

func (l *boltLedger) CreateWalletTransaction(ctx context.Context, wtx *models.WalletTransaction) error {
	stamp(&wtx.ID, &wtx.CreatedAt)
	return l.update(func(tx *bolt.Tx) error {
		return putJSON(tx, walletBucket, wtx.ID, wtx)
	})
}

func (l *boltLedger) GetWalletBalance(ctx context.Context) (models.WalletBalance, error) {
	var wtxs []models.WalletTransaction
	err := l.view(func(tx *bolt.Tx) error {
		var err error
		wtxs, err = listJSON[models.WalletTransaction](tx, walletBucket, nil)
		return err
	})
	if err != nil {
		return models.WalletBalance{}, err
	}
	return models.FoldWalletBalance(wtxs), nil
}
