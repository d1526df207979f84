package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"confirmation-service/internal/domain"
	"confirmation-service/internal/infra"
	"confirmation-service/internal/mocks"
	"confirmation-service/internal/repository"
	"confirmation-service/internal/ticketcode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testIssuedAt = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

const (
	testOrderID   = "6f1d9c9e-2a43-4bb7-90d1-1d3c62e1f001"
	testPaymentID = "b0a7e6a2-5c11-4b5f-8e7d-9f2a30c4d002"
	testUserID    = "17c2f3b4-88aa-4f6e-b0ac-c5d611aa0003"
)

func newTestService(store repository.ConfirmationStore, users infra.UserClientInterface, pub *mocks.MockPublisher) *ConfirmationService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewConfirmationService(store, users, pub, logger)
	s.now = func() time.Time { return testIssuedAt }
	return s
}

func pendingPayment(quantities map[string]int, fullName string) *domain.Payment {
	payload, _ := json.Marshal(domain.PaymentPayload{Quantities: quantities, FullName: fullName})
	return &domain.Payment{
		ID:      testPaymentID,
		OrderID: testOrderID,
		Status:  domain.PaymentStatusPending,
		Amount:  450000,
		Payload: payload,
	}
}

func pendingOrder() *domain.Order {
	return &domain.Order{
		ID:     testOrderID,
		UserID: testUserID,
		Status: domain.OrderStatusPending,
		Amount: 450000,
	}
}

func strPtr(s string) *string { return &s }

func TestConfirmPayment_Outcomes(t *testing.T) {
	tests := []struct {
		name            string
		providerRef     string
		setupMocks      func(tx *mocks.MockConfirmationTx)
		storeErr        error
		expectedOutcome ConfirmOutcome
		expectedError   string
		noTransition    bool
	}{
		{
			name:        "unknown order is acknowledged without transition",
			providerRef: "inv_123",
			setupMocks: func(tx *mocks.MockConfirmationTx) {
				tx.On("PaymentForUpdate", testOrderID).Return(nil, nil)
			},
			expectedOutcome: OutcomeUnknownOrder,
			noTransition:    true,
		},
		{
			name:        "already paid payment is idempotent",
			providerRef: "inv_123",
			setupMocks: func(tx *mocks.MockConfirmationTx) {
				paid := pendingPayment(map[string]int{"reguler": 1}, "")
				paid.Status = domain.PaymentStatusPaid
				tx.On("PaymentForUpdate", testOrderID).Return(paid, nil)
			},
			expectedOutcome: OutcomeAlreadyPaid,
			noTransition:    true,
		},
		{
			name:        "provider reference mismatch skips the transition",
			providerRef: "inv_other",
			setupMocks: func(tx *mocks.MockConfirmationTx) {
				p := pendingPayment(map[string]int{"reguler": 1}, "")
				p.ProviderRef = strPtr("inv_stored")
				tx.On("PaymentForUpdate", testOrderID).Return(p, nil)
			},
			expectedOutcome: OutcomeProviderMismatch,
			noTransition:    true,
		},
		{
			name:        "pre-existing tickets suppress re-issuance",
			providerRef: "inv_123",
			setupMocks: func(tx *mocks.MockConfirmationTx) {
				tx.On("PaymentForUpdate", testOrderID).Return(pendingPayment(map[string]int{"reguler": 2}, ""), nil)
				tx.On("MarkPaymentPaid", testPaymentID, "inv_123").Return(nil)
				tx.On("MarkOrderPaid", testOrderID, testIssuedAt).Return(nil)
				tx.On("CountTicketsByOrder", testOrderID).Return(int64(2), nil)
			},
			expectedOutcome: OutcomeTicketsExist,
		},
		{
			name:          "transaction failure propagates",
			providerRef:   "inv_123",
			storeErr:      errors.New("deadlock detected"),
			expectedError: "deadlock detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(mocks.MockConfirmationStore)
			mockTx := new(mocks.MockConfirmationTx)
			mockUsers := new(mocks.MockUserClient)
			mockPub := new(mocks.MockPublisher)

			if tt.storeErr != nil {
				mockStore.On("InTransaction", mock.Anything, mock.Anything).Return(nil, tt.storeErr)
			} else {
				mockStore.On("InTransaction", mock.Anything, mock.Anything).Return(mockTx, nil)
				tt.setupMocks(mockTx)
			}

			service := newTestService(mockStore, mockUsers, mockPub)
			outcome, err := service.ConfirmPayment(context.Background(), testOrderID, tt.providerRef)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedOutcome, outcome)
			}

			if tt.noTransition {
				mockTx.AssertNotCalled(t, "MarkPaymentPaid", mock.Anything, mock.Anything)
				mockTx.AssertNotCalled(t, "MarkOrderPaid", mock.Anything, mock.Anything)
			}
			mockTx.AssertNotCalled(t, "CreateTicket", mock.Anything)
			mockPub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
			mockStore.AssertExpectations(t)
			mockTx.AssertExpectations(t)
		})
	}
}

func TestConfirmPayment_IssuesExactBatch(t *testing.T) {
	mockStore := new(mocks.MockConfirmationStore)
	mockTx := new(mocks.MockConfirmationTx)
	mockUsers := new(mocks.MockUserClient)
	mockPub := new(mocks.MockPublisher)

	mockStore.On("InTransaction", mock.Anything, mock.Anything).Return(mockTx, nil)
	mockTx.On("PaymentForUpdate", testOrderID).Return(pendingPayment(map[string]int{"vip": 1, "reguler": 2}, "Jane Doe"), nil)
	mockTx.On("MarkPaymentPaid", testPaymentID, "inv_123").Return(nil)
	mockTx.On("MarkOrderPaid", testOrderID, testIssuedAt).Return(nil)
	mockTx.On("CountTicketsByOrder", testOrderID).Return(int64(0), nil)
	mockTx.On("Order", testOrderID).Return(pendingOrder(), nil)
	mockTx.On("CountShortCodesWithPrefix", "janedoe-20250314").Return(int64(0), nil)

	var created []*domain.Ticket
	mockTx.On("CreateTicket", mock.AnythingOfType("*domain.Ticket")).Return(nil).Run(func(args mock.Arguments) {
		created = append(created, args.Get(0).(*domain.Ticket))
	})

	mockUsers.On("GetUserById", mock.Anything, testUserID).Return(&infra.UserInfo{
		ID:       testUserID,
		Email:    "jane.doe@example.com",
		FullName: "Jane Doe",
	}, nil)
	mockPub.On("Publish", mock.Anything, "ticket.issued", mock.Anything).Return(nil).Maybe()

	service := newTestService(mockStore, mockUsers, mockPub)
	outcome, err := service.ConfirmPayment(context.Background(), testOrderID, "inv_123")

	assert.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Len(t, created, 3)

	// ticket-type keys issue in sorted order, sequence runs across types
	assert.Equal(t, "reguler", created[0].TicketType)
	assert.Equal(t, "reguler", created[1].TicketType)
	assert.Equal(t, "vip", created[2].TicketType)
	assert.Equal(t, "janedoe-20250314-1", created[0].ShortCode)
	assert.Equal(t, "janedoe-20250314-2", created[1].ShortCode)
	assert.Equal(t, "janedoe-20250314-3", created[2].ShortCode)

	seenTokens := map[string]bool{}
	for _, tk := range created {
		assert.Equal(t, domain.TicketStatusPaid, tk.Status)
		assert.Equal(t, testOrderID, tk.OrderID)
		assert.Equal(t, testUserID, tk.UserID)
		assert.Equal(t, "Jane Doe", tk.BuyerName)
		assert.True(t, strings.HasPrefix(tk.EntryToken, "ticket_"))
		assert.False(t, seenTokens[tk.EntryToken])
		seenTokens[tk.EntryToken] = true
		assert.LessOrEqual(t, len(tk.ShortCode), ticketcode.MaxShortCodeLen)
		assert.NotNil(t, tk.IssuedAt)
		assert.Nil(t, tk.CheckedInAt)
	}

	time.Sleep(100 * time.Millisecond)
	mockStore.AssertExpectations(t)
	mockTx.AssertExpectations(t)
	mockUsers.AssertExpectations(t)
}

func TestConfirmPayment_ZeroQuantityTypeIssuesNothing(t *testing.T) {
	mockStore := new(mocks.MockConfirmationStore)
	mockTx := new(mocks.MockConfirmationTx)
	mockUsers := new(mocks.MockUserClient)
	mockPub := new(mocks.MockPublisher)

	mockStore.On("InTransaction", mock.Anything, mock.Anything).Return(mockTx, nil)
	mockTx.On("PaymentForUpdate", testOrderID).Return(pendingPayment(map[string]int{"reguler": 2, "vip": 1, "early": 0}, "Jane Doe"), nil)
	mockTx.On("MarkPaymentPaid", testPaymentID, "inv_123").Return(nil)
	mockTx.On("MarkOrderPaid", testOrderID, testIssuedAt).Return(nil)
	mockTx.On("CountTicketsByOrder", testOrderID).Return(int64(0), nil)
	mockTx.On("Order", testOrderID).Return(pendingOrder(), nil)
	mockTx.On("CountShortCodesWithPrefix", mock.Anything).Return(int64(0), nil)

	var created []*domain.Ticket
	mockTx.On("CreateTicket", mock.AnythingOfType("*domain.Ticket")).Return(nil).Run(func(args mock.Arguments) {
		created = append(created, args.Get(0).(*domain.Ticket))
	})

	mockUsers.On("GetUserById", mock.Anything, testUserID).Return(&infra.UserInfo{Email: "jane@example.com"}, nil)
	mockPub.On("Publish", mock.Anything, "ticket.issued", mock.Anything).Return(nil).Maybe()

	service := newTestService(mockStore, mockUsers, mockPub)
	outcome, err := service.ConfirmPayment(context.Background(), testOrderID, "inv_123")

	assert.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Len(t, created, 3)
	for _, tk := range created {
		assert.NotEqual(t, "early", tk.TicketType)
	}
}

func TestConfirmPayment_RetriesOnShortCodeCollision(t *testing.T) {
	mockStore := new(mocks.MockConfirmationStore)
	mockTx := new(mocks.MockConfirmationTx)
	mockUsers := new(mocks.MockUserClient)
	mockPub := new(mocks.MockPublisher)

	mockStore.On("InTransaction", mock.Anything, mock.Anything).Return(mockTx, nil)
	mockTx.On("PaymentForUpdate", testOrderID).Return(pendingPayment(map[string]int{"reguler": 1}, "Jane Doe"), nil)
	mockTx.On("MarkPaymentPaid", testPaymentID, "inv_123").Return(nil)
	mockTx.On("MarkOrderPaid", testOrderID, testIssuedAt).Return(nil)
	mockTx.On("CountTicketsByOrder", testOrderID).Return(int64(0), nil)
	mockTx.On("Order", testOrderID).Return(pendingOrder(), nil)
	mockTx.On("CountShortCodesWithPrefix", "janedoe-20250314").Return(int64(4), nil)

	// a concurrent batch grabbed janedoe-20250314-5 between the count and
	// the insert; the bumped sequence lands on -6
	var created []*domain.Ticket
	mockTx.On("CreateTicket", mock.MatchedBy(func(tk *domain.Ticket) bool {
		return tk.ShortCode == "janedoe-20250314-5"
	})).Return(repository.ErrDuplicateTicket).Once()
	mockTx.On("CreateTicket", mock.AnythingOfType("*domain.Ticket")).Return(nil).Run(func(args mock.Arguments) {
		created = append(created, args.Get(0).(*domain.Ticket))
	})

	mockUsers.On("GetUserById", mock.Anything, testUserID).Return(&infra.UserInfo{Email: "jane.doe@example.com"}, nil)
	mockPub.On("Publish", mock.Anything, "ticket.issued", mock.Anything).Return(nil).Maybe()

	service := newTestService(mockStore, mockUsers, mockPub)
	outcome, err := service.ConfirmPayment(context.Background(), testOrderID, "inv_123")

	assert.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Len(t, created, 1)
	assert.Equal(t, "janedoe-20250314-6", created[0].ShortCode)
}

func TestConfirmPayment_CollisionRetriesExhausted(t *testing.T) {
	mockStore := new(mocks.MockConfirmationStore)
	mockTx := new(mocks.MockConfirmationTx)
	mockUsers := new(mocks.MockUserClient)
	mockPub := new(mocks.MockPublisher)

	mockStore.On("InTransaction", mock.Anything, mock.Anything).Return(mockTx, nil)
	mockTx.On("PaymentForUpdate", testOrderID).Return(pendingPayment(map[string]int{"reguler": 1}, "Jane Doe"), nil)
	mockTx.On("MarkPaymentPaid", testPaymentID, "inv_123").Return(nil)
	mockTx.On("MarkOrderPaid", testOrderID, testIssuedAt).Return(nil)
	mockTx.On("CountTicketsByOrder", testOrderID).Return(int64(0), nil)
	mockTx.On("Order", testOrderID).Return(pendingOrder(), nil)
	mockTx.On("CountShortCodesWithPrefix", mock.Anything).Return(int64(0), nil)
	mockTx.On("CreateTicket", mock.Anything).Return(repository.ErrDuplicateTicket)

	mockUsers.On("GetUserById", mock.Anything, testUserID).Return(&infra.UserInfo{Email: "jane@example.com"}, nil)

	service := newTestService(mockStore, mockUsers, mockPub)
	_, err := service.ConfirmPayment(context.Background(), testOrderID, "inv_123")

	assert.ErrorIs(t, err, ErrIssuanceExhausted)
	mockTx.AssertNumberOfCalls(t, "CreateTicket", 5)
	mockPub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPayment_KeepsStoredProviderRef(t *testing.T) {
	mockStore := new(mocks.MockConfirmationStore)
	mockTx := new(mocks.MockConfirmationTx)
	mockUsers := new(mocks.MockUserClient)
	mockPub := new(mocks.MockPublisher)

	payment := pendingPayment(map[string]int{"reguler": 1}, "Jane Doe")
	payment.ProviderRef = strPtr("inv_stored")

	mockStore.On("InTransaction", mock.Anything, mock.Anything).Return(mockTx, nil)
	mockTx.On("PaymentForUpdate", testOrderID).Return(payment, nil)
	mockTx.On("MarkPaymentPaid", testPaymentID, "inv_stored").Return(nil)
	mockTx.On("MarkOrderPaid", testOrderID, testIssuedAt).Return(nil)
	mockTx.On("CountTicketsByOrder", testOrderID).Return(int64(0), nil)
	mockTx.On("Order", testOrderID).Return(pendingOrder(), nil)
	mockTx.On("CountShortCodesWithPrefix", mock.Anything).Return(int64(0), nil)
	mockTx.On("CreateTicket", mock.Anything).Return(nil)

	mockUsers.On("GetUserById", mock.Anything, testUserID).Return(&infra.UserInfo{Email: "jane@example.com"}, nil)
	mockPub.On("Publish", mock.Anything, "ticket.issued", mock.Anything).Return(nil).Maybe()

	service := newTestService(mockStore, mockUsers, mockPub)
	outcome, err := service.ConfirmPayment(context.Background(), testOrderID, "")

	assert.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	mockTx.AssertCalled(t, "MarkPaymentPaid", testPaymentID, "inv_stored")
}

func TestConfirmPayment_GuestBaseWhenIdentityUnavailable(t *testing.T) {
	mockStore := new(mocks.MockConfirmationStore)
	mockTx := new(mocks.MockConfirmationTx)
	mockUsers := new(mocks.MockUserClient)
	mockPub := new(mocks.MockPublisher)

	mockStore.On("InTransaction", mock.Anything, mock.Anything).Return(mockTx, nil)
	mockTx.On("PaymentForUpdate", testOrderID).Return(pendingPayment(map[string]int{"reguler": 1}, ""), nil)
	mockTx.On("MarkPaymentPaid", testPaymentID, "inv_123").Return(nil)
	mockTx.On("MarkOrderPaid", testOrderID, testIssuedAt).Return(nil)
	mockTx.On("CountTicketsByOrder", testOrderID).Return(int64(0), nil)
	mockTx.On("Order", testOrderID).Return(pendingOrder(), nil)
	mockTx.On("CountShortCodesWithPrefix", "guest-20250314").Return(int64(0), nil)

	var created []*domain.Ticket
	mockTx.On("CreateTicket", mock.AnythingOfType("*domain.Ticket")).Return(nil).Run(func(args mock.Arguments) {
		created = append(created, args.Get(0).(*domain.Ticket))
	})

	mockUsers.On("GetUserById", mock.Anything, testUserID).Return(nil, errors.New("user service unavailable"))
	mockPub.On("Publish", mock.Anything, "ticket.issued", mock.Anything).Return(nil).Maybe()

	service := newTestService(mockStore, mockUsers, mockPub)
	outcome, err := service.ConfirmPayment(context.Background(), testOrderID, "inv_123")

	assert.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Len(t, created, 1)
	assert.Equal(t, "guest-20250314-1", created[0].ShortCode)
}

func TestConfirmPayment_SameNotificationTwice(t *testing.T) {
	mockStore := new(mocks.MockConfirmationStore)
	mockTx := new(mocks.MockConfirmationTx)
	mockUsers := new(mocks.MockUserClient)
	mockPub := new(mocks.MockPublisher)

	pending := pendingPayment(map[string]int{"reguler": 2, "vip": 1}, "Jane Doe")
	paid := pendingPayment(map[string]int{"reguler": 2, "vip": 1}, "Jane Doe")
	paid.Status = domain.PaymentStatusPaid
	paid.ProviderRef = strPtr("inv_123")

	mockStore.On("InTransaction", mock.Anything, mock.Anything).Return(mockTx, nil)
	mockTx.On("PaymentForUpdate", testOrderID).Return(pending, nil).Once()
	mockTx.On("PaymentForUpdate", testOrderID).Return(paid, nil)
	mockTx.On("MarkPaymentPaid", testPaymentID, "inv_123").Return(nil)
	mockTx.On("MarkOrderPaid", testOrderID, testIssuedAt).Return(nil)
	mockTx.On("CountTicketsByOrder", testOrderID).Return(int64(0), nil)
	mockTx.On("Order", testOrderID).Return(pendingOrder(), nil)
	mockTx.On("CountShortCodesWithPrefix", mock.Anything).Return(int64(0), nil)

	var created []*domain.Ticket
	mockTx.On("CreateTicket", mock.AnythingOfType("*domain.Ticket")).Return(nil).Run(func(args mock.Arguments) {
		created = append(created, args.Get(0).(*domain.Ticket))
	})

	mockUsers.On("GetUserById", mock.Anything, testUserID).Return(&infra.UserInfo{Email: "jane.doe@example.com"}, nil)
	mockPub.On("Publish", mock.Anything, "ticket.issued", mock.Anything).Return(nil).Maybe()

	service := newTestService(mockStore, mockUsers, mockPub)

	first, err := service.ConfirmPayment(context.Background(), testOrderID, "inv_123")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, first)

	second, err := service.ConfirmPayment(context.Background(), testOrderID, "inv_123")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPaid, second)

	// exactly one batch, exactly sum(quantities) tickets
	assert.Len(t, created, 3)
	mockTx.AssertNumberOfCalls(t, "MarkPaymentPaid", 1)
}

func TestGetOrderById(t *testing.T) {
	tests := []struct {
		name          string
		setupMocks    func(store *mocks.MockConfirmationStore)
		expectedError error
	}{
		{
			name: "order found",
			setupMocks: func(store *mocks.MockConfirmationStore) {
				store.On("FindOrder", mock.Anything, testOrderID).Return(pendingOrder(), nil)
			},
		},
		{
			name: "order missing",
			setupMocks: func(store *mocks.MockConfirmationStore) {
				store.On("FindOrder", mock.Anything, testOrderID).Return(nil, nil)
			},
			expectedError: ErrOrderNotFound,
		},
		{
			name: "storage error",
			setupMocks: func(store *mocks.MockConfirmationStore) {
				store.On("FindOrder", mock.Anything, testOrderID).Return(nil, errors.New("connection refused"))
			},
			expectedError: errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(mocks.MockConfirmationStore)
			tt.setupMocks(mockStore)

			service := newTestService(mockStore, new(mocks.MockUserClient), new(mocks.MockPublisher))
			order, err := service.GetOrderById(context.Background(), testOrderID)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Nil(t, order)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, testOrderID, order.ID)
			}
			mockStore.AssertExpectations(t)
		})
	}
}

func TestListTicketsByOrder(t *testing.T) {
	mockStore := new(mocks.MockConfirmationStore)
	mockStore.On("FindOrder", mock.Anything, testOrderID).Return(pendingOrder(), nil)
	mockStore.On("TicketsByOrder", mock.Anything, testOrderID).Return([]domain.Ticket{
		{ID: "t1", OrderID: testOrderID, ShortCode: "janedoe-20250314-1"},
		{ID: "t2", OrderID: testOrderID, ShortCode: "janedoe-20250314-2"},
	}, nil)

	service := newTestService(mockStore, new(mocks.MockUserClient), new(mocks.MockPublisher))
	tickets, err := service.ListTicketsByOrder(context.Background(), testOrderID)

	assert.NoError(t, err)
	assert.Len(t, tickets, 2)

	mockStore2 := new(mocks.MockConfirmationStore)
	mockStore2.On("FindOrder", mock.Anything, "missing").Return(nil, nil)
	service2 := newTestService(mockStore2, new(mocks.MockUserClient), new(mocks.MockPublisher))
	_, err = service2.ListTicketsByOrder(context.Background(), "missing")
	assert.Equal(t, ErrOrderNotFound, err)
}
