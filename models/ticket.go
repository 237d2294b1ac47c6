package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	StatusUnused TicketStatus = "unused"
	StatusUsed   TicketStatus = "used"
)

const DefaultTicketType = "Standard"

type Ticket struct {
	ID         string       `json:"id"`
	OrderID    string       `json:"order_id"`
	EventID    string       `json:"event_id"`
	Seq        int          `json:"seq"`
	Email      string       `json:"email"`
	Name       string       `json:"name,omitempty"`
	TicketType string       `json:"ticket_type"`
	Status     TicketStatus `json:"status"` // unused, used
	Signature  string       `json:"signature"`
	IssuedAt   time.Time    `json:"issued_at"`
	UsedAt     *time.Time   `json:"used_at"`
}

// PaidOrder is a normalized "order paid" notification. Amount is informational
// only; the ticket count comes from Quantity.
type PaidOrder struct {
	OrderID    string          `json:"order_id"`
	EventID    string          `json:"event_id"`
	Email      string          `json:"email"`
	Name       string          `json:"name,omitempty"`
	TicketType string          `json:"ticket_type"`
	Quantity   int             `json:"quantity"`
	Amount     decimal.Decimal `json:"amount"`
}

type IssueResult struct {
	OrderID   string   `json:"order_id"`
	EventID   string   `json:"event_id"`
	Issued    int      `json:"issued"`
	Existing  int      `json:"existing,omitempty"`
	TicketIDs []string `json:"ticket_ids,omitempty"`
}

type Redemption struct {
	Valid      bool       `json:"valid"`
	Reason     string     `json:"reason,omitempty"` // ALREADY_USED, NOT_FOUND
	TicketID   string     `json:"ticket_id,omitempty"`
	OrderID    string     `json:"order_id,omitempty"`
	EventID    string     `json:"event_id,omitempty"`
	TicketType string     `json:"ticket_type,omitempty"`
	Name       string     `json:"name,omitempty"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
}

type Attachment struct {
	Filename string
	Content  []byte
	// Inline attachments are referenced from the HTML body as cid:Filename.
	Inline bool
}

type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

type NoticeType string

const (
	NoticeIssued   NoticeType = "ticket_issued"
	NoticeRedeemed NoticeType = "ticket_redeemed"
)

// Notice is the realtime message published for dashboards at the gate.
type Notice struct {
	Type       NoticeType      `json:"type"`
	TicketID   string          `json:"ticket_id,omitempty"`
	OrderID    string          `json:"order_id"`
	EventID    string          `json:"event_id"`
	TicketType string          `json:"ticket_type,omitempty"`
	Count      int             `json:"count,omitempty"`
	Amount     decimal.Decimal `json:"amount,omitempty"`
	At         time.Time       `json:"at"`
}
