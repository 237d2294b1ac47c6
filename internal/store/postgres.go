package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticket-gate/internal/status"
	"ticket-gate/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const ticketColumns = `id, order_id, event_id, seq, email, name, ticket_type, status, signature, issued_at, used_at`

// CreatePostgresSchema creates the tickets and order_claims tables.
func CreatePostgresSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS tickets (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		seq INT NOT NULL,
		email TEXT NOT NULL,
		name TEXT,
		ticket_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unused' CHECK (status IN ('unused', 'used')),
		signature TEXT NOT NULL,
		issued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		used_at TIMESTAMPTZ,
		UNIQUE (order_id, event_id, seq)
		);`)
	if err != nil {
		return fmt.Errorf("creating tickets table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS order_claims (
		order_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (order_id, event_id)
		);`)
	if err != nil {
		return fmt.Errorf("creating order_claims table: %w", err)
	}

	return nil
}

type ticketRow struct {
	ID         string         `db:"id"`
	OrderID    string         `db:"order_id"`
	EventID    string         `db:"event_id"`
	Seq        int            `db:"seq"`
	Email      string         `db:"email"`
	Name       sql.NullString `db:"name"`
	TicketType string         `db:"ticket_type"`
	Status     string         `db:"status"`
	Signature  string         `db:"signature"`
	IssuedAt   time.Time      `db:"issued_at"`
	UsedAt     sql.NullTime   `db:"used_at"`
}

func (r ticketRow) ticket() models.Ticket {
	t := models.Ticket{
		ID:         r.ID,
		OrderID:    r.OrderID,
		EventID:    r.EventID,
		Seq:        r.Seq,
		Email:      r.Email,
		Name:       r.Name.String,
		TicketType: r.TicketType,
		Status:     models.TicketStatus(r.Status),
		Signature:  r.Signature,
		IssuedAt:   r.IssuedAt,
	}
	if r.UsedAt.Valid {
		usedAt := r.UsedAt.Time
		t.UsedAt = &usedAt
	}
	return t
}

type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) CountForOrder(ctx context.Context, orderID, eventID string) (int, error) {
	var n int
	err := p.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM tickets WHERE order_id = $1 AND event_id = $2`, orderID, eventID)
	if err != nil {
		return 0, fmt.Errorf("counting tickets: %w", err)
	}
	return n, nil
}

func (p *Postgres) Insert(ctx context.Context, ticket models.Ticket) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO tickets
		(id, order_id, event_id, seq, email, name, ticket_type, status, signature, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'unused', $8, NOW());`,
		ticket.ID, ticket.OrderID, ticket.EventID, ticket.Seq, ticket.Email,
		sql.NullString{String: ticket.Name, Valid: ticket.Name != ""},
		ticket.TicketType, ticket.Signature)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("ticket %s: %w", ticket.ID, status.ErrDuplicateID)
		}
		return fmt.Errorf("inserting ticket: %w", err)
	}
	return nil
}

func (p *Postgres) ClaimIfUnused(ctx context.Context, ticketID string) (models.Ticket, error) {
	var row ticketRow
	err := p.db.QueryRowxContext(ctx, `UPDATE tickets
		SET status = 'used', used_at = NOW()
		WHERE id = $1 AND status = 'unused'
		RETURNING `+ticketColumns, ticketID).StructScan(&row)
	if err == nil {
		return row.ticket(), nil
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

func (p *Postgres) Lookup(ctx context.Context, ticketID string) (models.Ticket, error) {
	var row ticketRow
	err := p.db.GetContext(ctx, &row, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, status.ErrNotFound
	}
	if err != nil {
		return models.Ticket{}, fmt.Errorf("querying ticket: %w", err)
	}
	return row.ticket(), nil
}

func (p *Postgres) ListForOrder(ctx context.Context, orderID, eventID string) ([]models.Ticket, error) {
	var rows []ticketRow
	err := p.db.SelectContext(ctx, &rows, `SELECT `+ticketColumns+` FROM tickets
		WHERE order_id = $1 AND event_id = $2 ORDER BY seq`, orderID, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}

	tickets := make([]models.Ticket, 0, len(rows))
	for _, r := range rows {
		tickets = append(tickets, r.ticket())
	}
	return tickets, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) ClaimOrder(ctx context.Context, orderID, eventID string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `INSERT INTO order_claims (order_id, event_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, orderID, eventID)
	if err != nil {
		return false, fmt.Errorf("claiming order: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n == 1, nil
}

func (p *Postgres) ReleaseOrder(ctx context.Context, orderID, eventID string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM order_claims WHERE order_id = $1 AND event_id = $2`, orderID, eventID)
	if err != nil {
		return fmt.Errorf("releasing order claim: %w", err)
	}
	return nil
}
