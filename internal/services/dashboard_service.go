package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/supabros/bookstore/internal/models"
	"github.com/supabros/bookstore/internal/replication"
	"github.com/supabros/bookstore/internal/store"
)

const (
	recentTransactionCount = 5
	backupQueueListLimit   = 50
)

type RecentTransaction struct {
	ID            string    `json:"id"`
	Amount        string    `json:"amount"`
	CustomerEmail string    `json:"customerEmail"`
	CreatedAt     time.Time `json:"createdAt"`
}

type DashboardStats struct {
	TotalRevenue       float64             `json:"totalRevenue"`
	TotalOrders        int                 `json:"totalOrders"`
	TotalBooks         int                 `json:"totalBooks"`
	AverageOrderValue  float64             `json:"averageOrderValue"`
	RecentTransactions []RecentTransaction `json:"recentTransactions"`
}

type DBStatus struct {
	Connected bool           `json:"connected"`
	Counts    map[string]int `json:"counts,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type BackupStatus struct {
	Enabled bool                           `json:"enabled"`
	Status  map[replication.TaskStatus]int `json:"status,omitempty"`
	Targets []string                       `json:"targets,omitempty"`
	Queue   []replication.Task             `json:"queue,omitempty"`
	Message string                         `json:"message,omitempty"`
}

// DashboardService aggregates the admin console overview. queue is nil when
// replication is not configured.
type DashboardService struct {
	store   store.Reader
	queue   *replication.Queue
	targets []replication.Target
}

func NewDashboardService(st store.Reader, queue *replication.Queue, targets []replication.Target) *DashboardService {
	return &DashboardService{store: st, queue: queue, targets: targets}
}

func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	txs, err := s.store.GetTransactions(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.GetOrders(ctx)
	if err != nil {
		return nil, err
	}
	books, err := s.store.GetBooks(ctx)
	if err != nil {
		return nil, err
	}

	revenue := decimal.Zero
	for _, tx := range txs {
		if tx.Status == models.TransactionStatusCompleted {
			revenue = revenue.Add(models.MustAmount(tx.Amount))
		}
	}

	average := decimal.Zero
	if len(orders) > 0 {
		average = revenue.Div(decimal.NewFromInt(int64(len(orders))))
	}

	recent := make([]RecentTransaction, 0, recentTransactionCount)
	for i, tx := range txs {
		if i == recentTransactionCount {
			break
		}
		email := tx.Order.CustomerEmail
		if email == "" {
			email = "Unknown"
		}
		recent = append(recent, RecentTransaction{ID: tx.ID, Amount: tx.Amount, CustomerEmail: email, CreatedAt: tx.CreatedAt})
	}

	return &DashboardStats{
		TotalRevenue:       revenue.Round(2).InexactFloat64(),
		TotalOrders:        len(orders),
		TotalBooks:         len(books),
		AverageOrderValue:  average.Round(2).InexactFloat64(),
		RecentTransactions: recent,
	}, nil
}

// Transactions lists every transaction joined with its order summary.
func (s *DashboardService) Transactions(ctx context.Context) ([]models.TransactionWithOrder, error) {
	txs, err := s.store.GetTransactions(ctx)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.TransactionWithOrder{}
	}
	return txs, nil
}

// DBStatus pings the ledger. A failing store is reported, not returned.
func (s *DashboardService) DBStatus(ctx context.Context) *DBStatus {
	books, err := s.store.GetBooks(ctx)
	if err != nil {
		return &DBStatus{Connected: false, Error: err.Error()}
	}
	admins, err := s.store.CountAdmins(ctx)
	if err != nil {
		return &DBStatus{Connected: false, Error: err.Error()}
	}
	return &DBStatus{Connected: true, Counts: map[string]int{"books": len(books), "admins": admins}}
}

func (s *DashboardService) BackupStatus(ctx context.Context) (*BackupStatus, error) {
	if s.queue == nil {
		return &BackupStatus{Enabled: false, Message: "No backup configured"}, nil
	}

	counts, err := s.queue.Counts(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.queue.List(ctx, "", backupQueueListLimit)
	if err != nil {
		return nil, err
	}
	// connection strings carry credentials
	for i := range tasks {
		if t, err := replication.ParseTarget(tasks[i].Conn); err == nil {
			tasks[i].Conn = t.Driver
		} else {
			tasks[i].Conn = "unknown"
		}
	}

	targets := make([]string, 0, len(s.targets))
	for _, t := range s.targets {
		targets = append(targets, t.Driver)
	}

	return &BackupStatus{Enabled: true, Status: counts, Targets: targets, Queue: tasks}, nil
}
