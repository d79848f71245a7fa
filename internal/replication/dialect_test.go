package replication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("mysql|user:pw@tcp(db:3306)/shop")
	require.NoError(t, err)
	assert.Equal(t, "mysql", target.Driver)
	assert.Equal(t, "user:pw@tcp(db:3306)/shop", target.DSN)

	_, err = ParseTarget("postgres")
	assert.Error(t, err)
	_, err = ParseTarget("oracle|scott/tiger")
	assert.Error(t, err)
}

func TestTarget_Render(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	insert := Mutation{Op: OpInsert, Table: "orders", ID: "o1", Columns: []Column{
		{"id", "o1"}, {"total_amount", "9.99"}, {"created_at", created},
	}}

	tests := []struct {
		driver string
		want   string
	}{
		{"postgres", "INSERT INTO orders (id, total_amount, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING"},
		{"mysql", "INSERT IGNORE INTO orders (id, total_amount, created_at) VALUES (?, ?, ?)"},
		{"sqlite3", "INSERT OR IGNORE INTO orders (id, total_amount, created_at) VALUES (?, ?, ?)"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			statement, params := Target{Driver: tt.driver}.Render(insert)
			assert.Equal(t, tt.want, statement)
			assert.Equal(t, []any{"o1", "9.99", "2024-05-01 12:00:00.000000"}, params)
		})
	}

	t.Run("update", func(t *testing.T) {
		statement, params := Target{Driver: "postgres"}.Render(Mutation{
			Op: OpUpdate, Table: "transactions", ID: "t1", Columns: []Column{{"status", "refunded"}},
		})
		assert.Equal(t, "UPDATE transactions SET status = $1 WHERE id = $2", statement)
		assert.Equal(t, []any{"refunded", "t1"}, params)
	})

	t.Run("delete", func(t *testing.T) {
		statement, params := Target{Driver: "mysql"}.Render(Mutation{Op: OpDelete, Table: "books", ID: "b1"})
		assert.Equal(t, "DELETE FROM books WHERE id = ?", statement)
		assert.Equal(t, []any{"b1"}, params)
	})

	t.Run("nil pointer becomes NULL", func(t *testing.T) {
		var intent *string
		_, params := Target{Driver: "sqlite3"}.Render(Mutation{Op: OpInsert, Table: "transactions", Columns: []Column{{"payment_intent_id", intent}}})
		assert.Equal(t, []any{nil}, params)
	})
}
