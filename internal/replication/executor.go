package replication

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Executor replays one statement against a target.
type Executor interface {
	Exec(ctx context.Context, target Target, statement string, params []any) error
}

// SQLExecutor opens a connection per task and closes it afterwards.
type SQLExecutor struct {
	Timeout time.Duration
}

func (e SQLExecutor) Exec(ctx context.Context, target Target, statement string, params []any) error {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return fmt.Errorf("open %s: %w", target.Driver, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, statement, params...); err != nil {
		return fmt.Errorf("exec on %s: %w", target.Driver, err)
	}
	return nil
}
