package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ticket-gate/internal/status"
	"ticket-gate/models"
)

// Memory keeps tickets in process memory. It is meant for development runs
// and tests; data does not survive a restart.
type Memory struct {
	mu      sync.Mutex
	tickets map[string]models.Ticket
	orders  map[string]struct{}
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		tickets: make(map[string]models.Ticket),
		orders:  make(map[string]struct{}),
		now:     time.Now,
	}
}

func orderKey(orderID, eventID string) string {
	return fmt.Sprintf("%s\x00%s", orderID, eventID)
}

func (m *Memory) CountForOrder(_ context.Context, orderID, eventID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tickets {
		if t.OrderID == orderID && t.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Insert(_ context.Context, ticket models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tickets[ticket.ID]; ok {
		return fmt.Errorf("ticket %s: %w", ticket.ID, status.ErrDuplicateID)
	}
	for _, t := range m.tickets {
		if t.OrderID == ticket.OrderID && t.EventID == ticket.EventID && t.Seq == ticket.Seq {
			return fmt.Errorf("order %s seq %d: %w", ticket.OrderID, ticket.Seq, status.ErrDuplicateID)
		}
	}

	ticket.Status = models.StatusUnused
	ticket.UsedAt = nil
	if ticket.IssuedAt.IsZero() {
		ticket.IssuedAt = m.now().UTC()
	}
	m.tickets[ticket.ID] = ticket
	return nil
}

func (m *Memory) ClaimIfUnused(_ context.Context, ticketID string) (models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticketID]
	if !ok {
		return models.Ticket{}, status.ErrNotFound
	}
	if t.Status != models.StatusUnused {
		return models.Ticket{}, status.ErrAlreadyUsed
	}

	usedAt := m.now().UTC()
	t.Status = models.StatusUsed
	t.UsedAt = &usedAt
	m.tickets[ticketID] = t
	return t, nil
}

func (m *Memory) Lookup(_ context.Context, ticketID string) (models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticketID]
	if !ok {
		return models.Ticket{}, status.ErrNotFound
	}
	return t, nil
}

func (m *Memory) ListForOrder(_ context.Context, orderID, eventID string) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tickets []models.Ticket
	for _, t := range m.tickets {
		if t.OrderID == orderID && t.EventID == eventID {
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].Seq < tickets[j].Seq })
	return tickets, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) ClaimOrder(_ context.Context, orderID, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := orderKey(orderID, eventID)
	if _, ok := m.orders[key]; ok {
		return false, nil
	}
	m.orders[key] = struct{}{}
	return true, nil
}

func (m *Memory) ReleaseOrder(_ context.Context, orderID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.orders, orderKey(orderID, eventID))
	return nil
}
