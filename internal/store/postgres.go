package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/supabros/bookstore/internal/models"
)

//go:embed schema.sql
var Schema string

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore is the relational ledger backend.
type PostgresStore struct {
	pgLedger
	db *sql.DB
}

type pgLedger struct {
	q    queryer
	inTx bool
}

// NewPostgres wraps an open connection pool. The schema is not touched.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{pgLedger: pgLedger{q: db}, db: db}
}

// OpenPostgres connects, configures the pool and applies the schema.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := NewPostgres(db)
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	log.Println("[STORE] postgres ledger ready")
	return s, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Ledger) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgLedger{q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit()
}

func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrReferenced
		}
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const bookColumns = `id, title, description, price, cover_image, download_url, category, created_at`

func scanBook(row interface{ Scan(...any) error }) (models.Book, error) {
	var b models.Book
	err := row.Scan(&b.ID, &b.Title, &b.Description, &b.Price, &b.CoverImage, &b.DownloadURL, &b.Category, &b.CreatedAt)
	return b, err
}

func (l *pgLedger) GetBooks(ctx context.Context) ([]models.Book, error) {
	rows, err := l.q.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (l *pgLedger) GetBook(ctx context.Context, id string) (*models.Book, error) {
	b, err := scanBook(l.q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (l *pgLedger) CreateBook(ctx context.Context, book *models.Book) error {
	stamp(&book.ID, &book.CreatedAt)
	_, err := l.q.ExecContext(ctx, `
		INSERT INTO books (id, title, description, price, cover_image, download_url, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		book.ID, book.Title, book.Description, book.Price, book.CoverImage, book.DownloadURL, book.Category, book.CreatedAt)
	return mapPQError(err)
}

func (l *pgLedger) UpdateBook(ctx context.Context, id string, update models.BookUpdate) (*models.Book, error) {
	b, err := l.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	update.Apply(b)

	result, err := l.q.ExecContext(ctx, `
		UPDATE books SET title = $1, description = $2, price = $3, cover_image = $4, download_url = $5, category = $6
		WHERE id = $7`,
		b.Title, b.Description, b.Price, b.CoverImage, b.DownloadURL, b.Category, id)
	if err != nil {
		return nil, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return b, nil
}

func (l *pgLedger) DeleteBook(ctx context.Context, id string) error {
	result, err := l.q.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return mapPQError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const orderColumns = `id, customer_email, total_amount, status, created_at`

func scanOrder(row interface{ Scan(...any) error }) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.CustomerEmail, &o.TotalAmount, &o.Status, &o.CreatedAt)
	return o, err
}

func (l *pgLedger) GetOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := l.q.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (l *pgLedger) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(l.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (l *pgLedger) CreateOrder(ctx context.Context, order *models.Order) error {
	stamp(&order.ID, &order.CreatedAt)
	_, err := l.q.ExecContext(ctx, `
		INSERT INTO orders (id, customer_email, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		order.ID, order.CustomerEmail, order.TotalAmount, order.Status, order.CreatedAt)
	return mapPQError(err)
}

// casStatus flips status from -> to and tells a missing row apart from a lost race.
func (l *pgLedger) casStatus(ctx context.Context, table, id, from, to string) error {
	result, err := l.q.ExecContext(ctx,
		`UPDATE `+table+` SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}

	var current string
	err = l.q.QueryRowContext(ctx, `SELECT status FROM `+table+` WHERE id = $1`, id).Scan(&current)
	if err != nil {
		return notFound(err)
	}
	return ErrStatusConflict
}

func (l *pgLedger) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	return l.casStatus(ctx, "orders", id, string(from), string(to))
}

func (l *pgLedger) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	_, err := l.q.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, book_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)`,
		item.ID, item.OrderID, item.BookID, item.Quantity, item.Price)
	return mapPQError(err)
}

func (l *pgLedger) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := l.q.QueryContext(ctx,
		`SELECT id, order_id, book_id, quantity, price FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.BookID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const transactionColumns = `id, order_id, amount, payment_method, status, payment_intent_id, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (models.Transaction, error) {
	var t models.Transaction
	var intent sql.NullString
	err := row.Scan(&t.ID, &t.OrderID, &t.Amount, &t.PaymentMethod, &t.Status, &intent, &t.CreatedAt)
	if intent.Valid {
		t.PaymentIntentID = &intent.String
	}
	return t, err
}

func (l *pgLedger) GetTransactions(ctx context.Context) ([]models.TransactionWithOrder, error) {
	rows, err := l.q.QueryContext(ctx, `
		SELECT t.id, t.order_id, t.amount, t.payment_method, t.status, t.payment_intent_id, t.created_at,
		       COALESCE(o.id, ''), COALESCE(o.customer_email, ''), COALESCE(o.status, '')
		FROM transactions t
		LEFT JOIN orders o ON o.id = t.order_id
		ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.TransactionWithOrder{}
	for rows.Next() {
		var row models.TransactionWithOrder
		var intent sql.NullString
		if err := rows.Scan(&row.ID, &row.OrderID, &row.Amount, &row.PaymentMethod, &row.Status, &intent, &row.CreatedAt,
			&row.Order.ID, &row.Order.CustomerEmail, &row.Order.Status); err != nil {
			return nil, err
		}
		if intent.Valid {
			row.PaymentIntentID = &intent.String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (l *pgLedger) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	t, err := scanTransaction(l.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (l *pgLedger) GetTransactionByPaymentIntent(ctx context.Context, intentID string) (*models.Transaction, error) {
	t, err := scanTransaction(l.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE payment_intent_id = $1 ORDER BY created_at DESC LIMIT 1`, intentID))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (l *pgLedger) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	stamp(&t.ID, &t.CreatedAt)
	_, err := l.q.ExecContext(ctx, `
		INSERT INTO transactions (id, order_id, amount, payment_method, status, payment_intent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.OrderID, t.Amount, t.PaymentMethod, t.Status, t.PaymentIntentID, t.CreatedAt)
	return mapPQError(err)
}

func (l *pgLedger) UpdateTransactionStatus(ctx context.Context, id string, from, to models.TransactionStatus) error {
	return l.casStatus(ctx, "transactions", id, string(from), string(to))
}

func (l *pgLedger) GetAdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var a models.Admin
	err := l.q.QueryRowContext(ctx,
		`SELECT id, username, password, created_at FROM admins WHERE username = $1`, username,
	).Scan(&a.ID, &a.Username, &a.Password, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// CountAdmins locks the admins table when called inside a transaction so a
// count followed by an insert cannot interleave with another one.
func (l *pgLedger) CountAdmins(ctx context.Context) (int, error) {
	if l.inTx {
		if _, err := l.q.ExecContext(ctx, `LOCK TABLE admins IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return 0, err
		}
	}
	var n int
	err := l.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n)
	return n, err
}

func (l *pgLedger) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	stamp(&admin.ID, &admin.CreatedAt)
	_, err := l.q.ExecContext(ctx,
		`INSERT INTO admins (id, username, password, created_at) VALUES ($1, $2, $3, $4)`,
		admin.ID, admin.Username, admin.Password, admin.CreatedAt)
	return mapPQError(err)
}

func (l *pgLedger) GetWalletTransactions(ctx context.Context) ([]models.WalletTransaction, error) {
	rows, err := l.q.QueryContext(ctx, `
		SELECT id, type, amount, status, bank_account_info, description, created_at
		FROM wallet_transactions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wtxs := []models.WalletTransaction{}
	for rows.Next() {
		var w models.WalletTransaction
		var bank sql.NullString
		if err := rows.Scan(&w.ID, &w.Type, &w.Amount, &w.Status, &bank, &w.Description, &w.CreatedAt); err != nil {
			return nil, err
		}
		if bank.Valid {
			w.BankAccountInfo = &bank.String
		}
		wtxs = append(wtxs, w)
	}
	return wtxs, rows.Err()
}

func (l *pgLedger) CreateWalletTransaction(ctx context.Context, wtx *models.WalletTransaction) error {
	stamp(&wtx.ID, &wtx.CreatedAt)
	_, err := l.q.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, type, amount, status, bank_account_info, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		wtx.ID, wtx.Type, wtx.Amount, wtx.Status, wtx.BankAccountInfo, wtx.Description, wtx.CreatedAt)
	return mapPQError(err)
}

const walletBalanceQuery = `
	SELECT
		COALESCE(SUM(CASE WHEN status = 'completed' AND type = 'payment_received' THEN amount ELSE 0 END), 0)
		- COALESCE(SUM(CASE WHEN status = 'completed' AND type IN ('transfer_to_bank', 'refund_issued') THEN amount ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'pending' AND type = 'payment_received' THEN amount ELSE 0 END), 0)
	FROM wallet_transactions`

// GetWalletBalance folds the whole wallet log in one aggregate. Inside a
// transaction the wallet table is locked first so two transfers checking the
// balance cannot interleave.
func (l *pgLedger) GetWalletBalance(ctx context.Context) (models.WalletBalance, error) {
	if l.inTx {
		if _, err := l.q.ExecContext(ctx, `LOCK TABLE wallet_transactions IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return models.WalletBalance{}, err
		}
	}

	var available, pending string
	if err := l.q.QueryRowContext(ctx, walletBalanceQuery).Scan(&available, &pending); err != nil {
		return models.WalletBalance{}, err
	}

	a, err := decimal.NewFromString(available)
	if err != nil {
		return models.WalletBalance{}, err
	}
	p, err := decimal.NewFromString(pending)
	if err != nil {
		return models.WalletBalance{}, err
	}
	return models.WalletBalance{AvailableBalance: a, PendingBalance: p}, nil
}
