package domain

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
	PaymentStatusExpired PaymentStatus = "EXPIRED"
	PaymentStatusVoided  PaymentStatus = "VOIDED"
)

// Payment is the settlement record tied one-to-one with an Order.
// ProviderRef is the gateway's invoice id; it stays NULL until the gateway
// assigns one and is globally unique afterwards.
type Payment struct {
	ID          string        `json:"id" gorm:"type:char(36);primaryKey"`
	OrderID     string        `json:"orderId" gorm:"type:char(36);not null;uniqueIndex"`
	ProviderRef *string       `json:"providerRef" gorm:"size:191;uniqueIndex"`
	Status      PaymentStatus `json:"status" gorm:"type:enum('PENDING','PAID','FAILED','EXPIRED','VOIDED');default:'PENDING'"`
	Amount      int64         `json:"amount" gorm:"not null"`
	InvoiceURL  string        `json:"invoiceUrl"`
	Payload     []byte        `json:"payload" gorm:"type:json"`
	CreatedAt   time.Time     `json:"createdAt" gorm:"autoCreateTime"`
}

// PaymentPayload is the snapshot stored at invoice-creation time: the
// requested quantities per ticket-type key, plus the buyer name entered at
// checkout when present.
type PaymentPayload struct {
	Quantities map[string]int `json:"quantities"`
	FullName   string         `json:"fullName,omitempty"`
}

func (p *Payment) ProviderReference() string {
	if p.ProviderRef == nil {
		return ""
	}
	return *p.ProviderRef
}

func (p *Payment) ParsePayload() (PaymentPayload, error) {
	var payload PaymentPayload
	if len(p.Payload) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(p.Payload, &payload); err != nil {
		return PaymentPayload{}, err
	}
	return payload, nil
}
