package repository

import (
	"context"
	"errors"
	"time"

	"confirmation-service/internal/domain"
)

// ErrDuplicateTicket is returned by CreateTicket when the entry token or
// short code collides with an existing row. Callers rebuild the code and
// retry inside the same transaction.
var ErrDuplicateTicket = errors.New("duplicate ticket identifier")

// ConfirmationStore is the persistence boundary of the confirmation engine.
// InTransaction runs fn inside one storage transaction; any error from fn
// rolls the whole transaction back, and the transaction-scoped handle must
// not escape fn.
type ConfirmationStore interface {
	InTransaction(ctx context.Context, fn func(tx ConfirmationTx) error) error
	FindOrder(ctx context.Context, id string) (*domain.Order, error)
	TicketsByOrder(ctx context.Context, orderID string) ([]domain.Ticket, error)
	TicketByEntryToken(ctx context.Context, token string) (*domain.Ticket, error)
}

// ConfirmationTx is the transaction-scoped view used while confirming one
// notification. Reads return (nil, nil) when no row matches.
type ConfirmationTx interface {
	// PaymentForUpdate reads the order's payment with a row lock, so two
	// concurrent notifications for the same order serialize here.
	PaymentForUpdate(orderID string) (*domain.Payment, error)
	// MarkPaymentPaid sets the payment PAID; providerRef is written only
	// when non-empty, otherwise the stored reference is kept.
	MarkPaymentPaid(paymentID, providerRef string) error
	MarkOrderPaid(orderID string, paidAt time.Time) error
	Order(orderID string) (*domain.Order, error)
	CountTicketsByOrder(orderID string) (int64, error)
	CountShortCodesWithPrefix(prefix string) (int64, error)
	CreateTicket(ticket *domain.Ticket) error
}
