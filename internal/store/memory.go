package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/supabros/bookstore/internal/models"
)

type memState struct {
	books  []models.Book
	orders []models.Order
	items  []models.OrderItem
	txs    []models.Transaction
	admins []models.Admin
	wallet []models.WalletTransaction
}

func (s *memState) clone() *memState {
	return &memState{
		books:  append([]models.Book(nil), s.books...),
		orders: append([]models.Order(nil), s.orders...),
		items:  append([]models.OrderItem(nil), s.items...),
		txs:    append([]models.Transaction(nil), s.txs...),
		admins: append([]models.Admin(nil), s.admins...),
		wallet: append([]models.WalletTransaction(nil), s.wallet...),
	}
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// memLedger operates on one memState. Outside a transaction mu is the store
// mutex; inside InTx the store mutex is already held and mu is a no-op.
type memLedger struct {
	mu sync.Locker
	st *memState
}

// MemoryStore keeps the ledger in process memory. Used for development and tests.
type MemoryStore struct {
	memLedger
	lock sync.Mutex
}

func NewMemory() *MemoryStore {
	m := &MemoryStore{}
	m.memLedger = memLedger{mu: &m.lock, st: &memState{}}
	return m
}

// InTx holds the store mutex for the whole callback, so transactions are serialized.
// Writes land on a clone which replaces the live state only when fn succeeds.
func (m *MemoryStore) InTx(ctx context.Context, fn func(Ledger) error) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	staged := m.st.clone()
	if err := fn(&memLedger{mu: nopLocker{}, st: staged}); err != nil {
		return err
	}
	*m.st = *staged
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func newestFirst[T any](in []T, createdAt func(T) int64) []T {
	out := make([]T, len(in))
	// reverse insertion order first so equal timestamps list the latest insert first
	for i := range in {
		out[len(in)-1-i] = in[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return createdAt(out[i]) > createdAt(out[j]) })
	return out
}

func (l *memLedger) GetBooks(ctx context.Context) ([]models.Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return newestFirst(l.st.books, func(b models.Book) int64 { return b.CreatedAt.UnixNano() }), nil
}

func (l *memLedger) GetBook(ctx context.Context, id string) (*models.Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.st.books {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (l *memLedger) CreateBook(ctx context.Context, book *models.Book) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stamp(&book.ID, &book.CreatedAt)
	for _, b := range l.st.books {
		if b.ID == book.ID {
			return ErrDuplicate
		}
	}
	l.st.books = append(l.st.books, *book)
	return nil
}

func (l *memLedger) UpdateBook(ctx context.Context, id string, update models.BookUpdate) (*models.Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.st.books {
		if l.st.books[i].ID == id {
			update.Apply(&l.st.books[i])
			b := l.st.books[i]
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (l *memLedger) DeleteBook(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, it := range l.st.items {
		if it.BookID == id {
			return ErrReferenced
		}
	}
	for i, b := range l.st.books {
		if b.ID == id {
			l.st.books = append(l.st.books[:i:i], l.st.books[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (l *memLedger) GetOrders(ctx context.Context) ([]models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return newestFirst(l.st.orders, func(o models.Order) int64 { return o.CreatedAt.UnixNano() }), nil
}

func (l *memLedger) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o := l.findOrder(id); o != nil {
		cp := *o
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (l *memLedger) findOrder(id string) *models.Order {
	for i := range l.st.orders {
		if l.st.orders[i].ID == id {
			return &l.st.orders[i]
		}
	}
	return nil
}

func (l *memLedger) CreateOrder(ctx context.Context, order *models.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stamp(&order.ID, &order.CreatedAt)
	if l.findOrder(order.ID) != nil {
		return ErrDuplicate
	}
	l.st.orders = append(l.st.orders, *order)
	return nil
}

func (l *memLedger) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	o := l.findOrder(id)
	if o == nil {
		return ErrNotFound
	}
	if o.Status != from {
		return ErrStatusConflict
	}
	o.Status = to
	return nil
}

func (l *memLedger) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if l.findOrder(item.OrderID) == nil {
		return ErrNotFound
	}
	l.st.items = append(l.st.items, *item)
	return nil
}

func (l *memLedger) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := []models.OrderItem{}
	for _, it := range l.st.items {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	return items, nil
}

func (l *memLedger) findTransaction(match func(models.Transaction) bool) *models.Transaction {
	for i := range l.st.txs {
		if match(l.st.txs[i]) {
			return &l.st.txs[i]
		}
	}
	return nil
}

func (l *memLedger) GetTransactions(ctx context.Context) ([]models.TransactionWithOrder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	txs := newestFirst(l.st.txs, func(t models.Transaction) int64 { return t.CreatedAt.UnixNano() })
	out := make([]models.TransactionWithOrder, 0, len(txs))
	for _, t := range txs {
		row := models.TransactionWithOrder{Transaction: t}
		if o := l.findOrder(t.OrderID); o != nil {
			row.Order = models.OrderSummary{ID: o.ID, CustomerEmail: o.CustomerEmail, Status: string(o.Status)}
		}
		out = append(out, row)
	}
	return out, nil
}

func (l *memLedger) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t := l.findTransaction(func(t models.Transaction) bool { return t.ID == id }); t != nil {
		cp := *t
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (l *memLedger) GetTransactionByPaymentIntent(ctx context.Context, intentID string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.findTransaction(func(t models.Transaction) bool {
		return t.PaymentIntentID != nil && *t.PaymentIntentID == intentID
	})
	if t == nil {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (l *memLedger) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stamp(&tx.ID, &tx.CreatedAt)
	if l.findOrder(tx.OrderID) == nil {
		return ErrNotFound
	}
	l.st.txs = append(l.st.txs, *tx)
	return nil
}

func (l *memLedger) UpdateTransactionStatus(ctx context.Context, id string, from, to models.TransactionStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.findTransaction(func(t models.Transaction) bool { return t.ID == id })
	if t == nil {
		return ErrNotFound
	}
	if t.Status != from {
		return ErrStatusConflict
	}
	t.Status = to
	return nil
}

func (l *memLedger) GetAdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.st.admins {
		if a.Username == username {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (l *memLedger) CountAdmins(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.st.admins), nil
}

func (l *memLedger) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.st.admins {
		if a.Username == admin.Username {
			return ErrDuplicate
		}
	}
	stamp(&admin.ID, &admin.CreatedAt)
	l.st.admins = append(l.st.admins, *admin)
	return nil
}

func (l *memLedger) GetWalletTransactions(ctx context.Context) ([]models.WalletTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return newestFirst(l.st.wallet, func(w models.WalletTransaction) int64 { return w.CreatedAt.UnixNano() }), nil
}

func (l *memLedger) CreateWalletTransaction(ctx context.Context, wtx *models.WalletTransaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stamp(&wtx.ID, &wtx.CreatedAt)
	l.st.wallet = append(l.st.wallet, *wtx)
	return nil
}

func (l *memLedger) GetWalletBalance(ctx context.Context) (models.WalletBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return models.FoldWalletBalance(l.st.wallet), nil
}
