package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusExpired   OrderStatus = "EXPIRED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is a buyer's purchase intent. The confirmation engine only ever
// drives the PENDING -> PAID transition; every other status belongs to the
// order-creation flow.
type Order struct {
	ID        string      `json:"id" gorm:"type:char(36);primaryKey"`
	UserID    string      `json:"userId" gorm:"type:char(36);not null;index"`
	Status    OrderStatus `json:"status" gorm:"type:enum('PENDING','PAID','EXPIRED','CANCELLED');default:'PENDING';index"`
	Amount    int64       `json:"amount" gorm:"not null"`
	CreatedAt time.Time   `json:"createdAt" gorm:"autoCreateTime"`
	PaidAt    *time.Time  `json:"paidAt"`
}
