// Package store persists tickets and order claims.
//
// Every implementation of ClaimIfUnused performs the unused→used transition
// as one conditional write. A follow-up read after a failed claim only
// classifies the failure (NOT_FOUND vs ALREADY_USED).
package store

import (
	"context"

	"ticket-gate/models"
)

type TicketStore interface {
	CountForOrder(ctx context.Context, orderID, eventID string) (int, error)
	Insert(ctx context.Context, ticket models.Ticket) error
	ClaimIfUnused(ctx context.Context, ticketID string) (models.Ticket, error)
	Lookup(ctx context.Context, ticketID string) (models.Ticket, error)
	ListForOrder(ctx context.Context, orderID, eventID string) ([]models.Ticket, error)
	Ping(ctx context.Context) error
}

// OrderClaimer records "this order is being issued" with insert-if-absent
// semantics, closing the window between CountForOrder and the first Insert.
type OrderClaimer interface {
	ClaimOrder(ctx context.Context, orderID, eventID string) (bool, error)
	ReleaseOrder(ctx context.Context, orderID, eventID string) error
}

// NoopClaimer grants every claim.
type NoopClaimer struct{}

func (NoopClaimer) ClaimOrder(context.Context, string, string) (bool, error) { return true, nil }

func (NoopClaimer) ReleaseOrder(context.Context, string, string) error { return nil }
