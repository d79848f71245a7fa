package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	payload := `{"totalAmount":"39.98","customerEmail":"reader@example.com","paymentMethod":"visa"}`

	t.Run("save sets key with ttl", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewSessionStore(db, 30*time.Minute)

		mock.ExpectSet("payment_session:abc", []byte(payload), 30*time.Minute).SetVal("OK")

		err := s.Save(ctx, "abc", PaymentSession{TotalAmount: "39.98", CustomerEmail: "reader@example.com", PaymentMethod: "visa"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get decodes session", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewSessionStore(db, 30*time.Minute)

		mock.ExpectGet("payment_session:abc").SetVal(payload)

		sess, err := s.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "39.98", sess.TotalAmount)
		assert.Equal(t, "reader@example.com", sess.CustomerEmail)
	})

	t.Run("expired session", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewSessionStore(db, 30*time.Minute)

		mock.ExpectGet("payment_session:gone").RedisNil()

		_, err := s.Get(ctx, "gone")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("nil client disables sessions", func(t *testing.T) {
		s := NewSessionStore(nil, time.Minute)
		assert.False(t, s.Enabled())

		_, err := s.Get(ctx, "abc")
		assert.ErrorIs(t, err, ErrSessionsDisabled)
		assert.NoError(t, s.Delete(ctx, "abc"))
	})
}
