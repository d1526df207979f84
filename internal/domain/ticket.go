package domain

import "time"

type TicketStatus string

const (
	TicketStatusUnpaid    TicketStatus = "UNPAID"
	TicketStatusPaid      TicketStatus = "PAID"
	TicketStatusCancelled TicketStatus = "CANCELLED"
)

// Ticket is one admission right. EntryToken is the opaque string scanned at
// the gate; ShortCode is the human-legible identifier printed on the ticket.
// Both are unique across all tickets ever issued. CheckedInAt belongs to the
// gate collaborator and is never written by the confirmation engine.
type Ticket struct {
	ID          string       `json:"id" gorm:"type:char(36);primaryKey"`
	OrderID     string       `json:"orderId" gorm:"type:char(36);not null;index"`
	UserID      string       `json:"userId" gorm:"type:char(36);not null;index"`
	Status      TicketStatus `json:"status" gorm:"type:enum('UNPAID','PAID','CANCELLED');default:'UNPAID'"`
	EntryToken  string       `json:"entryToken" gorm:"size:64;not null;uniqueIndex"`
	ShortCode   string       `json:"shortCode" gorm:"size:24;not null;uniqueIndex"`
	TicketType  string       `json:"ticketType" gorm:"size:64"`
	BuyerName   string       `json:"buyerName"`
	IssuedBy    string       `json:"issuedBy" gorm:"size:32"`
	IssuedAt    *time.Time   `json:"issuedAt"`
	CheckedInAt *time.Time   `json:"checkedInAt"`
}
