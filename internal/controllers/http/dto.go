package http

import "time"

type WebhookAck struct {
	OK bool `json:"ok"`
}

type OrderResponse struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Amount    int64      `json:"amount"`
	CreatedAt time.Time  `json:"createdAt"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}

type TicketResponse struct {
	ID         string     `json:"id"`
	OrderID    string     `json:"orderId"`
	Status     string     `json:"status"`
	EntryToken string     `json:"entryToken"`
	ShortCode  string     `json:"shortCode"`
	TicketType string     `json:"ticketType"`
	BuyerName  string     `json:"buyerName"`
	IssuedAt   *time.Time `json:"issuedAt,omitempty"`
}
