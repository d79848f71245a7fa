package services

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/supabros/bookstore/internal/payment"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Charge(ctx context.Context, req payment.ChargeRequest) payment.ChargeResult {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.ChargeResult)
}
