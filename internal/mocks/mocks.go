package mocks

import (
	"context"
	"time"

	"confirmation-service/internal/domain"
	"confirmation-service/internal/infra"
	"confirmation-service/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockConfirmationStore struct {
	mock.Mock
}

type MockConfirmationTx struct {
	mock.Mock
}

type MockUserClient struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

// InTransaction runs fn against the ConfirmationTx configured as the first
// return value; an error from fn is returned as-is, standing in for the
// rollback path of a real transaction.
func (m *MockConfirmationStore) InTransaction(ctx context.Context, fn func(tx repository.ConfirmationTx) error) error {
	args := m.Called(ctx, fn)
	if tx, ok := args.Get(0).(repository.ConfirmationTx); ok && tx != nil {
		if err := fn(tx); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockConfirmationStore) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockConfirmationStore) TicketsByOrder(ctx context.Context, orderID string) ([]domain.Ticket, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

func (m *MockConfirmationStore) TicketByEntryToken(ctx context.Context, token string) (*domain.Ticket, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockConfirmationTx) PaymentForUpdate(orderID string) (*domain.Payment, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockConfirmationTx) MarkPaymentPaid(paymentID, providerRef string) error {
	args := m.Called(paymentID, providerRef)
	return args.Error(0)
}

func (m *MockConfirmationTx) MarkOrderPaid(orderID string, paidAt time.Time) error {
	args := m.Called(orderID, paidAt)
	return args.Error(0)
}

func (m *MockConfirmationTx) Order(orderID string) (*domain.Order, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockConfirmationTx) CountTicketsByOrder(orderID string) (int64, error) {
	args := m.Called(orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConfirmationTx) CountShortCodesWithPrefix(prefix string) (int64, error) {
	args := m.Called(prefix)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConfirmationTx) CreateTicket(ticket *domain.Ticket) error {
	args := m.Called(ticket)
	return args.Error(0)
}

func (m *MockUserClient) GetUserById(ctx context.Context, id string) (*infra.UserInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.UserInfo), args.Error(1)
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, data interface{}) error {
	args := m.Called(ctx, routingKey, data)
	return args.Error(0)
}
