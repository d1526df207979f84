// Package seeds loads a minimal fixture set so a payment callback can be
// exercised against a fresh local database.
package seeds

import (
	"encoding/json"
	"fmt"

	"confirmation-service/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Run creates a demo user with one PENDING order and its PENDING payment
// requesting {reguler: 2, vip: 1}, and returns the order so callers can
// print the webhook reference to post against.
func Run(db *gorm.DB) (*domain.Order, error) {
	userID := uuid.NewString()
	user := &domain.User{
		ID:       userID,
		Email:    fmt.Sprintf("demo+%s@example.com", userID[:8]),
		FullName: "Demo Buyer",
	}
	if err := db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}

	order := &domain.Order{
		ID:     uuid.NewString(),
		UserID: user.ID,
		Status: domain.OrderStatusPending,
		Amount: 450000,
	}
	if err := db.Create(order).Error; err != nil {
		return nil, fmt.Errorf("seed order: %w", err)
	}

	payload, err := json.Marshal(domain.PaymentPayload{
		Quantities: map[string]int{"reguler": 2, "vip": 1},
		FullName:   user.FullName,
	})
	if err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:      uuid.NewString(),
		OrderID: order.ID,
		Status:  domain.PaymentStatusPending,
		Amount:  order.Amount,
		Payload: payload,
	}
	if err := db.Create(payment).Error; err != nil {
		return nil, fmt.Errorf("seed payment: %w", err)
	}

	return order, nil
}
