package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ticket-gate/internal/mail"
	"ticket-gate/internal/status"
	"ticket-gate/internal/store"
	"ticket-gate/internal/token"
	"ticket-gate/models"
	"ticket-gate/monitoring"

	"github.com/google/uuid"
)

type Renderer interface {
	Render(ctx context.Context, token string, size int) ([]byte, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, msg models.Message) error
}

type Notifier interface {
	Publish(ctx context.Context, notice models.Notice) error
}

type IssuanceConfig struct {
	DefaultEventID    string
	EventName         string
	DefaultTicketType string
	MaxTickets        int
	QRSize            int
	StoreTimeout      time.Duration
	DeliveryTimeout   time.Duration
}

type IssuanceService struct {
	tickets  store.TicketStore
	claims   store.OrderClaimer
	codec    *token.Codec
	renderer Renderer
	mailer   Deliverer
	notifier Notifier
	cfg      IssuanceConfig

	newID func() string
	now   func() time.Time
}

func NewIssuanceService(
	tickets store.TicketStore,
	claims store.OrderClaimer,
	codec *token.Codec,
	renderer Renderer,
	mailer Deliverer,
	notifier Notifier,
	cfg IssuanceConfig,
) *IssuanceService {
	if claims == nil {
		claims = store.NoopClaimer{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.DefaultTicketType == "" {
		cfg.DefaultTicketType = models.DefaultTicketType
	}

	return &IssuanceService{
		tickets:  tickets,
		claims:   claims,
		codec:    codec,
		renderer: renderer,
		mailer:   mailer,
		notifier: notifier,
		cfg:      cfg,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Issue turns one paid order into stored and delivered tickets. An order that
// already has tickets is reported as existing and nothing else happens.
// Tickets stored before a failing step are kept; a retry sees them and stops.
func (s *IssuanceService) Issue(ctx context.Context, order models.PaidOrder) (res models.IssueResult, err error) {
	defer func() {
		switch {
		case err != nil:
			monitoring.TrackIssuance(string(status.CodeOf(err)))
		case res.Issued > 0:
			monitoring.TrackIssuance("issued")
		default:
			monitoring.TrackIssuance("existing")
		}
	}()

	order = s.withDefaults(order)
	if err := s.validate(order); err != nil {
		return res, status.Wrap(status.CodeInvalidInput, "validate", err)
	}

	res = models.IssueResult{OrderID: order.OrderID, EventID: order.EventID}
	log := slog.With("order_id", order.OrderID, "event_id", order.EventID)

	existing, err := s.count(ctx, order)
	if err != nil {
		return res, status.Wrap(status.CodeDBCheckFailed, "count", err)
	}
	if existing > 0 {
		log.Info("order already issued", "existing", existing)
		res.Existing = existing
		return res, nil
	}

	claimed, err := s.claimOrder(ctx, order)
	if err != nil {
		return res, status.Wrap(status.CodeDBCheckFailed, "claim order", err)
	}
	if !claimed {
		existing, err = s.count(ctx, order)
		if err != nil {
			return res, status.Wrap(status.CodeDBCheckFailed, "count", err)
		}
		log.Warn("order claimed by a concurrent issuance", "existing", existing)
		res.Existing = existing
		return res, nil
	}

	for seq := 1; seq <= order.Quantity; seq++ {
		id, inserted, err := s.issueOne(ctx, order, seq)
		if inserted {
			res.TicketIDs = append(res.TicketIDs, id)
		}
		if err != nil {
			if len(res.TicketIDs) == 0 {
				s.releaseOrder(ctx, order)
			}
			log.Error("issuance aborted",
				"seq", seq, "quantity", order.Quantity, "stored", len(res.TicketIDs), "error", err)
			return res, err
		}
		res.Issued++
	}

	monitoring.TrackIssued(order.EventID, res.Issued)
	log.Info("tickets issued", "issued", res.Issued, "amount", order.Amount.String())

	notice := models.Notice{
		Type:    models.NoticeIssued,
		OrderID: order.OrderID,
		EventID: order.EventID,
		Count:   res.Issued,
		Amount:  order.Amount,
		At:      s.now().UTC(),
	}
	if err := s.notifier.Publish(ctx, notice); err != nil {
		log.Warn("publishing issued notice", "error", err)
	}

	return res, nil
}

// Resend renders and delivers every stored ticket of an order again. Tokens
// are recomputed from the stored identifiers; no ticket is created.
func (s *IssuanceService) Resend(ctx context.Context, orderID, eventID string) (int, error) {
	if eventID == "" {
		eventID = s.cfg.DefaultEventID
	}
	if err := token.ValidateField("order_id", orderID); err != nil {
		return 0, status.Wrap(status.CodeInvalidInput, "validate", err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	tickets, err := s.tickets.ListForOrder(storeCtx, orderID, eventID)
	cancel()
	if err != nil {
		return 0, status.Wrap(status.CodeDBLookupFailed, "list", err)
	}
	if len(tickets) == 0 {
		return 0, status.Wrap(status.CodeNotFound, "list", status.ErrNotFound)
	}

	sent := 0
	for _, t := range tickets {
		tok, err := s.codec.Mint(t.ID, t.OrderID, t.EventID)
		if err != nil {
			return sent, status.Wrap(status.CodeInvalidInput, "mint", err)
		}
		if sig := tok[strings.LastIndex(tok, token.Delimiter)+1:]; sig != t.Signature {
			slog.Warn("stored signature differs from recomputed one",
				"ticket_id", t.ID, "order_id", t.OrderID)
		}

		if err := s.renderAndDeliver(ctx, t, tok); err != nil {
			return sent, err
		}
		sent++
	}

	slog.Info("tickets resent", "order_id", orderID, "event_id", eventID, "sent", sent)
	return sent, nil
}

func (s *IssuanceService) withDefaults(order models.PaidOrder) models.PaidOrder {
	order.OrderID = strings.TrimSpace(order.OrderID)
	order.Email = strings.TrimSpace(order.Email)
	if order.EventID == "" {
		order.EventID = s.cfg.DefaultEventID
	}
	if order.TicketType == "" {
		order.TicketType = s.cfg.DefaultTicketType
	}
	return order
}

func (s *IssuanceService) validate(order models.PaidOrder) error {
	if err := token.ValidateField("order_id", order.OrderID); err != nil {
		return err
	}
	if err := token.ValidateField("event_id", order.EventID); err != nil {
		return err
	}
	if order.Email == "" {
		return fmt.Errorf("email is empty: %w", status.ErrInvalidInput)
	}
	if order.Quantity < 1 {
		return fmt.Errorf("quantity %d: %w", order.Quantity, status.ErrInvalidInput)
	}
	if s.cfg.MaxTickets > 0 && order.Quantity > s.cfg.MaxTickets {
		return fmt.Errorf("quantity %d exceeds %d: %w", order.Quantity, s.cfg.MaxTickets, status.ErrInvalidInput)
	}
	return nil
}

func (s *IssuanceService) count(ctx context.Context, order models.PaidOrder) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	defer monitoring.ObserveStep("count", time.Now())

	return s.tickets.CountForOrder(ctx, order.OrderID, order.EventID)
}

func (s *IssuanceService) claimOrder(ctx context.Context, order models.PaidOrder) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	return s.claims.ClaimOrder(ctx, order.OrderID, order.EventID)
}

func (s *IssuanceService) releaseOrder(ctx context.Context, order models.PaidOrder) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
	defer cancel()

	if err := s.claims.ReleaseOrder(ctx, order.OrderID, order.EventID); err != nil {
		slog.Error("releasing order claim", "order_id", order.OrderID, "event_id", order.EventID, "error", err)
	}
}

// issueOne reports whether the ticket row was written even when a later step
// failed.
func (s *IssuanceService) issueOne(ctx context.Context, order models.PaidOrder, seq int) (string, bool, error) {
	id := s.newID()

	tok, err := s.codec.Mint(id, order.OrderID, order.EventID)
	if err != nil {
		return id, false, status.Wrap(status.CodeInvalidInput, "mint", err)
	}

	ticket := models.Ticket{
		ID:         id,
		OrderID:    order.OrderID,
		EventID:    order.EventID,
		Seq:        seq,
		Email:      order.Email,
		Name:       order.Name,
		TicketType: order.TicketType,
		Status:     models.StatusUnused,
		Signature:  tok[strings.LastIndex(tok, token.Delimiter)+1:],
		IssuedAt:   s.now().UTC(),
	}

	if err := s.insert(ctx, ticket); err != nil {
		return id, false, status.Wrap(status.CodeDBInsertFailed, "insert", err)
	}

	if err := s.renderAndDeliver(ctx, ticket, tok); err != nil {
		monitoring.TrackUndelivered()
		slog.Error("ticket stored but not delivered",
			"ticket_id", id, "order_id", order.OrderID, "event_id", order.EventID, "error", err)
		return id, true, err
	}
	return id, true, nil
}

func (s *IssuanceService) insert(ctx context.Context, ticket models.Ticket) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	defer monitoring.ObserveStep("insert", time.Now())

	err := s.tickets.Insert(ctx, ticket)
	if errors.Is(err, status.ErrDuplicateID) {
		return fmt.Errorf("ticket %s seq %d: %w", ticket.ID, ticket.Seq, err)
	}
	return err
}

func (s *IssuanceService) renderAndDeliver(ctx context.Context, t models.Ticket, tok string) error {
	start := time.Now()
	png, err := s.renderer.Render(ctx, tok, s.cfg.QRSize)
	monitoring.ObserveStep("render", start)
	if err != nil {
		return status.Wrap(status.CodeRenderFailed, "render", err)
	}

	msg, err := mail.TicketMessage(mail.Ticket{
		To:         t.Email,
		Name:       t.Name,
		EventName:  s.cfg.EventName,
		OrderID:    t.OrderID,
		TicketID:   t.ID,
		TicketType: t.TicketType,
		Token:      tok,
		QR:         png,
	})
	if err != nil {
		return status.Wrap(status.CodeDelivery, "compose", err)
	}

	deliverCtx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	defer cancel()

	start = time.Now()
	err = s.mailer.Deliver(deliverCtx, msg)
	monitoring.ObserveStep("deliver", start)
	if err != nil {
		return status.Wrap(status.CodeDelivery, "deliver", err)
	}
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, models.Notice) error { return nil }
