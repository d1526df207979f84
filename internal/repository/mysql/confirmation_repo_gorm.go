package mysql

import (
	"context"
	"errors"
	"time"

	"confirmation-service/internal/domain"
	"confirmation-service/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type confirmationRepo struct {
	db *gorm.DB
}

func NewConfirmationStore(db *gorm.DB) repository.ConfirmationStore {
	return &confirmationRepo{db: db}
}

func (r *confirmationRepo) InTransaction(ctx context.Context, fn func(tx repository.ConfirmationTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&confirmationTx{db: tx})
	})
}

func (r *confirmationRepo) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *confirmationRepo) TicketsByOrder(ctx context.Context, orderID string) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("short_code ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *confirmationRepo) TicketByEntryToken(ctx context.Context, token string) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := r.db.WithContext(ctx).Where("entry_token = ?", token).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

type confirmationTx struct {
	db *gorm.DB
}

func (t *confirmationTx) PaymentForUpdate(orderID string) (*domain.Payment, error) {
	var p domain.Payment
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (t *confirmationTx) MarkPaymentPaid(paymentID, providerRef string) error {
	updates := map[string]any{"status": domain.PaymentStatusPaid}
	if providerRef != "" {
		updates["provider_ref"] = providerRef
	}
	return t.db.Model(&domain.Payment{}).Where("id = ?", paymentID).Updates(updates).Error
}

func (t *confirmationTx) MarkOrderPaid(orderID string, paidAt time.Time) error {
	return t.db.Model(&domain.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{"status": domain.OrderStatusPaid, "paid_at": paidAt}).Error
}

func (t *confirmationTx) Order(orderID string) (*domain.Order, error) {
	var o domain.Order
	if err := t.db.Where("id = ?", orderID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (t *confirmationTx) CountTicketsByOrder(orderID string) (int64, error) {
	var n int64
	err := t.db.Model(&domain.Ticket{}).Where("order_id = ?", orderID).Count(&n).Error
	return n, err
}

func (t *confirmationTx) CountShortCodesWithPrefix(prefix string) (int64, error) {
	var n int64
	err := t.db.Model(&domain.Ticket{}).Where("short_code LIKE ?", prefix+"%").Count(&n).Error
	return n, err
}

func (t *confirmationTx) CreateTicket(ticket *domain.Ticket) error {
	if err := t.db.Create(ticket).Error; err != nil {
		// MySQL keeps the transaction usable after a duplicate-key error,
		// so the caller can rebuild the code and retry in place.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicateTicket
		}
		return err
	}
	return nil
}
