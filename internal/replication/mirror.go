package replication

import (
	"context"
	"log"

	"github.com/supabros/bookstore/internal/models"
	"github.com/supabros/bookstore/internal/store"
)

// MirroredStore decorates a primary store so that every committed write is
// queued for each replication target. Queueing errors are logged and never
// reach the caller.
type MirroredStore struct {
	store.Store
	queue   *Queue
	targets []Target
}

func NewMirroredStore(primary store.Store, queue *Queue, targets []Target) *MirroredStore {
	return &MirroredStore{Store: primary, queue: queue, targets: targets}
}

func (m *MirroredStore) Queue() *Queue      { return m.queue }
func (m *MirroredStore) Targets() []Target { return m.targets }

func (m *MirroredStore) enqueue(ctx context.Context, muts ...Mutation) {
	if len(m.targets) == 0 || len(muts) == 0 {
		return
	}
	// the primary write already committed; a cancelled request must not drop its replay
	ctx = context.WithoutCancel(ctx)
	for _, mu := range muts {
		for _, target := range m.targets {
			statement, params := target.Render(mu)
			if _, err := m.queue.Enqueue(ctx, target.String(), statement, params); err != nil {
				log.Printf("[REPLICATION] failed to enqueue %s %s for %s: %v", mu.Op, mu.Table, target.Driver, err)
			}
		}
	}
}

func (m *MirroredStore) direct(ctx context.Context) *recorder {
	return &recorder{Ledger: m.Store, record: func(mu Mutation) { m.enqueue(ctx, mu) }}
}

// InTx queues the writes fn made only once the primary transaction commits.
func (m *MirroredStore) InTx(ctx context.Context, fn func(store.Ledger) error) error {
	var pending []Mutation
	err := m.Store.InTx(ctx, func(l store.Ledger) error {
		pending = pending[:0]
		return fn(&recorder{Ledger: l, record: func(mu Mutation) { pending = append(pending, mu) }})
	})
	if err != nil {
		return err
	}
	m.enqueue(ctx, pending...)
	return nil
}

func (m *MirroredStore) CreateBook(ctx context.Context, book *models.Book) error {
	return m.direct(ctx).CreateBook(ctx, book)
}

func (m *MirroredStore) UpdateBook(ctx context.Context, id string, update models.BookUpdate) (*models.Book, error) {
	return m.direct(ctx).UpdateBook(ctx, id, update)
}

func (m *MirroredStore) DeleteBook(ctx context.Context, id string) error {
	return m.direct(ctx).DeleteBook(ctx, id)
}

func (m *MirroredStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return m.direct(ctx).CreateOrder(ctx, order)
}

func (m *MirroredStore) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	return m.direct(ctx).UpdateOrderStatus(ctx, id, from, to)
}

func (m *MirroredStore) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	return m.direct(ctx).CreateOrderItem(ctx, item)
}

func (m *MirroredStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	return m.direct(ctx).CreateTransaction(ctx, tx)
}

func (m *MirroredStore) UpdateTransactionStatus(ctx context.Context, id string, from, to models.TransactionStatus) error {
	return m.direct(ctx).UpdateTransactionStatus(ctx, id, from, to)
}

func (m *MirroredStore) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	return m.direct(ctx).CreateAdmin(ctx, admin)
}

func (m *MirroredStore) CreateWalletTransaction(ctx context.Context, wtx *models.WalletTransaction) error {
	return m.direct(ctx).CreateWalletTransaction(ctx, wtx)
}

// recorder turns successful writes on a ledger into mutations.
type recorder struct {
	store.Ledger
	record func(Mutation)
}

func bookColumns(b *models.Book) []Column {
	return []Column{
		{"title", b.Title}, {"description", b.Description}, {"price", b.Price},
		{"cover_image", b.CoverImage}, {"download_url", b.DownloadURL}, {"category", b.Category},
	}
}

func (r *recorder) CreateBook(ctx context.Context, book *models.Book) error {
	if err := r.Ledger.CreateBook(ctx, book); err != nil {
		return err
	}
	cols := append([]Column{{"id", book.ID}}, bookColumns(book)...)
	r.record(Mutation{Op: OpInsert, Table: "books", ID: book.ID, Columns: append(cols, Column{"created_at", book.CreatedAt})})
	return nil
}

func (r *recorder) UpdateBook(ctx context.Context, id string, update models.BookUpdate) (*models.Book, error) {
	book, err := r.Ledger.UpdateBook(ctx, id, update)
	if err != nil {
		return nil, err
	}
	r.record(Mutation{Op: OpUpdate, Table: "books", ID: id, Columns: bookColumns(book)})
	return book, nil
}

func (r *recorder) DeleteBook(ctx context.Context, id string) error {
	if err := r.Ledger.DeleteBook(ctx, id); err != nil {
		return err
	}
	r.record(Mutation{Op: OpDelete, Table: "books", ID: id})
	return nil
}

func (r *recorder) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := r.Ledger.CreateOrder(ctx, order); err != nil {
		return err
	}
	r.record(Mutation{Op: OpInsert, Table: "orders", ID: order.ID, Columns: []Column{
		{"id", order.ID}, {"customer_email", order.CustomerEmail}, {"total_amount", order.TotalAmount},
		{"status", string(order.Status)}, {"created_at", order.CreatedAt},
	}})
	return nil
}

func (r *recorder) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	if err := r.Ledger.UpdateOrderStatus(ctx, id, from, to); err != nil {
		return err
	}
	r.record(Mutation{Op: OpUpdate, Table: "orders", ID: id, Columns: []Column{{"status", string(to)}}})
	return nil
}

func (r *recorder) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	if err := r.Ledger.CreateOrderItem(ctx, item); err != nil {
		return err
	}
	r.record(Mutation{Op: OpInsert, Table: "order_items", ID: item.ID, Columns: []Column{
		{"id", item.ID}, {"order_id", item.OrderID}, {"book_id", item.BookID},
		{"quantity", item.Quantity}, {"price", item.Price},
	}})
	return nil
}

func (r *recorder) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := r.Ledger.CreateTransaction(ctx, tx); err != nil {
		return err
	}
	r.record(Mutation{Op: OpInsert, Table: "transactions", ID: tx.ID, Columns: []Column{
		{"id", tx.ID}, {"order_id", tx.OrderID}, {"amount", tx.Amount}, {"payment_method", string(tx.PaymentMethod)},
		{"status", string(tx.Status)}, {"payment_intent_id", tx.PaymentIntentID}, {"created_at", tx.CreatedAt},
	}})
	return nil
}

func (r *recorder) UpdateTransactionStatus(ctx context.Context, id string, from, to models.TransactionStatus) error {
	if err := r.Ledger.UpdateTransactionStatus(ctx, id, from, to); err != nil {
		return err
	}
	r.record(Mutation{Op: OpUpdate, Table: "transactions", ID: id, Columns: []Column{{"status", string(to)}}})
	return nil
}

func (r *recorder) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	if err := r.Ledger.CreateAdmin(ctx, admin); err != nil {
		return err
	}
	r.record(Mutation{Op: OpInsert, Table: "admins", ID: admin.ID, Columns: []Column{
		{"id", admin.ID}, {"username", admin.Username}, {"password", admin.Password}, {"created_at", admin.CreatedAt},
	}})
	return nil
}

func (r *recorder) CreateWalletTransaction(ctx context.Context, wtx *models.WalletTransaction) error {
	if err := r.Ledger.CreateWalletTransaction(ctx, wtx); err != nil {
		return err
	}
	r.record(Mutation{Op: OpInsert, Table: "wallet_transactions", ID: wtx.ID, Columns: []Column{
		{"id", wtx.ID}, {"type", string(wtx.Type)}, {"amount", wtx.Amount}, {"status", string(wtx.Status)},
		{"bank_account_info", wtx.BankAccountInfo}, {"description", wtx.Description}, {"created_at", wtx.CreatedAt},
	}})
	return nil
}
