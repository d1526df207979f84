package domain

import "time"

type TicketsIssuedEvent struct {
	OrderID    string         `json:"orderId"`
	UserID     string         `json:"userId"`
	Count      int            `json:"count"`
	Quantities map[string]int `json:"quantities"`
	IssuedAt   time.Time      `json:"issuedAt"`
}
