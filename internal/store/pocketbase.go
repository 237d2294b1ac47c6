package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-gate/internal/status"
	"ticket-gate/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/security"
	"github.com/pocketbase/pocketbase/tools/types"
)

const (
	TicketsCollection     = "tickets"
	OrderClaimsCollection = "order_claims"

	recordIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	recordIDLength   = 15

	pbTicketColumns = "ticket_id, order_id, event_id, seq, email, name, ticket_type, status, signature, issued_at, used_at"
)

// pbTicketRow mirrors the tickets collection table. PocketBase stores dates
// as text and uses "" for unset values.
type pbTicketRow struct {
	TicketID   string `db:"ticket_id"`
	OrderID    string `db:"order_id"`
	EventID    string `db:"event_id"`
	Seq        int    `db:"seq"`
	Email      string `db:"email"`
	Name       string `db:"name"`
	TicketType string `db:"ticket_type"`
	Status     string `db:"status"`
	Signature  string `db:"signature"`
	IssuedAt   string `db:"issued_at"`
	UsedAt     string `db:"used_at"`
}

func (r pbTicketRow) ticket() (models.Ticket, error) {
	t := models.Ticket{
		ID:         r.TicketID,
		OrderID:    r.OrderID,
		EventID:    r.EventID,
		Seq:        r.Seq,
		Email:      r.Email,
		Name:       r.Name,
		TicketType: r.TicketType,
		Status:     models.TicketStatus(r.Status),
		Signature:  r.Signature,
	}

	issuedAt, err := types.ParseDateTime(r.IssuedAt)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("parsing issued_at: %w", err)
	}
	t.IssuedAt = issuedAt.Time()

	if r.UsedAt != "" {
		usedAt, err := types.ParseDateTime(r.UsedAt)
		if err != nil {
			return models.Ticket{}, fmt.Errorf("parsing used_at: %w", err)
		}
		u := usedAt.Time()
		t.UsedAt = &u
	}
	return t, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(types.DefaultDateLayout)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// PocketBase stores tickets in the collections created by the migrations
// package. SQLite serializes writers, so the conditional UPDATE in
// ClaimIfUnused is atomic with respect to other claims.
type PocketBase struct {
	app core.App
	now func() time.Time
}

func NewPocketBase(app core.App) *PocketBase {
	return &PocketBase{app: app, now: time.Now}
}

func (p *PocketBase) CountForOrder(ctx context.Context, orderID, eventID string) (int, error) {
	var n int
	err := p.app.DB().
		Select("COUNT(*)").
		From(TicketsCollection).
		Where(dbx.HashExp{"order_id": orderID, "event_id": eventID}).
		WithContext(ctx).
		Row(&n)
	if err != nil {
		return 0, fmt.Errorf("counting tickets: %w", err)
	}
	return n, nil
}

func (p *PocketBase) Insert(ctx context.Context, ticket models.Ticket) error {
	issuedAt := ticket.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = p.now()
	}

	_, err := p.app.NonconcurrentDB().
		Insert(TicketsCollection, dbx.Params{
			"id":          security.RandomStringWithAlphabet(recordIDLength, recordIDAlphabet),
			"ticket_id":   ticket.ID,
			"order_id":    ticket.OrderID,
			"event_id":    ticket.EventID,
			"seq":         ticket.Seq,
			"email":       ticket.Email,
			"name":        ticket.Name,
			"ticket_type": ticket.TicketType,
			"status":      string(models.StatusUnused),
			"signature":   ticket.Signature,
			"issued_at":   formatDate(issuedAt),
			"used_at":     "",
		}).
		WithContext(ctx).
		Execute()
	if isUniqueViolation(err) {
		return fmt.Errorf("ticket %s: %w", ticket.ID, status.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("inserting ticket: %w", err)
	}
	return nil
}

func (p *PocketBase) ClaimIfUnused(ctx context.Context, ticketID string) (models.Ticket, error) {
	var row pbTicketRow
	err := p.app.NonconcurrentDB().
		NewQuery(`UPDATE ` + TicketsCollection + `
			SET status = 'used', used_at = {:used_at}
			WHERE ticket_id = {:ticket_id} AND status = 'unused'
			RETURNING ` + pbTicketColumns).
		Bind(dbx.Params{"used_at": formatDate(p.now()), "ticket_id": ticketID}).
		WithContext(ctx).
		One(&row)
	if err == nil {
		return row.ticket()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, fmt.Errorf("claiming ticket: %w", err)
	}

	t, err := p.Lookup(ctx, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if t.Status == models.StatusUsed {
		return models.Ticket{}, status.ErrAlreadyUsed
	}
	return models.Ticket{}, fmt.Errorf("claiming ticket %s: unexpected status %q", ticketID, t.Status)
}

func (p *PocketBase) Lookup(ctx context.Context, ticketID string) (models.Ticket, error) {
	var row pbTicketRow
	err := p.app.DB().
		Select(strings.Split(pbTicketColumns, ", ")...).
		From(TicketsCollection).
		Where(dbx.HashExp{"ticket_id": ticketID}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, status.ErrNotFound
	}
	if err != nil {
		return models.Ticket{}, fmt.Errorf("querying ticket: %w", err)
	}
	return row.ticket()
}

func (p *PocketBase) ListForOrder(ctx context.Context, orderID, eventID string) ([]models.Ticket, error) {
	var rows []pbTicketRow
	err := p.app.DB().
		Select(strings.Split(pbTicketColumns, ", ")...).
		From(TicketsCollection).
		Where(dbx.HashExp{"order_id": orderID, "event_id": eventID}).
		OrderBy("seq ASC").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}

	tickets := make([]models.Ticket, 0, len(rows))
	for _, r := range rows {
		t, err := r.ticket()
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func (p *PocketBase) Ping(ctx context.Context) error {
	var one int
	return p.app.DB().NewQuery("SELECT 1").WithContext(ctx).Row(&one)
}

func (p *PocketBase) ClaimOrder(ctx context.Context, orderID, eventID string) (bool, error) {
	res, err := p.app.NonconcurrentDB().
		NewQuery(`INSERT INTO ` + OrderClaimsCollection + ` (id, order_id, event_id, claimed_at)
			VALUES ({:id}, {:order_id}, {:event_id}, {:claimed_at})
			ON CONFLICT DO NOTHING`).
		Bind(dbx.Params{
			"id":         security.RandomStringWithAlphabet(recordIDLength, recordIDAlphabet),
			"order_id":   orderID,
			"event_id":   eventID,
			"claimed_at": formatDate(p.now()),
		}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return false, fmt.Errorf("claiming order: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n == 1, nil
}

func (p *PocketBase) ReleaseOrder(ctx context.Context, orderID, eventID string) error {
	_, err := p.app.NonconcurrentDB().
		Delete(OrderClaimsCollection, dbx.HashExp{"order_id": orderID, "event_id": eventID}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("releasing order claim: %w", err)
	}
	return nil
}
