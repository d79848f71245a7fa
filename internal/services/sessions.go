package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/supabros/bookstore/internal/models"
)

var (
	ErrSessionNotFound = errors.New("payment session not found")
	// ErrSessionsDisabled is returned when no Redis client is configured.
	ErrSessionsDisabled = errors.New("payment sessions disabled")
)

// PaymentSession is the server-side record of a validated cart.
type PaymentSession struct {
	TotalAmount   string               `json:"totalAmount"`
	CustomerEmail string               `json:"customerEmail"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
}

// SessionStore keeps payment sessions in Redis. A nil client disables it.
type SessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{redis: client, ttl: ttl}
}

func (s *SessionStore) Enabled() bool {
	return s != nil && s.redis != nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("payment_session:%s", id)
}

func (s *SessionStore) Save(ctx context.Context, id string, sess PaymentSession) error {
	if !s.Enabled() {
		return ErrSessionsDisabled
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, sessionKey(id), data, s.ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, id string) (*PaymentSession, error) {
	if !s.Enabled() {
		return nil, ErrSessionsDisabled
	}
	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var sess PaymentSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if !s.Enabled() {
		return nil
	}
	return s.redis.Del(ctx, sessionKey(id)).Err()
}
