package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ticket-gate/internal/status"
	"ticket-gate/internal/store"
	"ticket-gate/internal/token"
	"ticket-gate/models"
	"ticket-gate/monitoring"
)

// noticeTimeout bounds how long a valid scan waits on the realtime notice.
const noticeTimeout = 2 * time.Second

type RedemptionService struct {
	tickets       store.TicketStore
	codec         *token.Codec
	notifier      Notifier
	storeTimeout  time.Duration
	noticeTimeout time.Duration
	now           func() time.Time
}

func NewRedemptionService(tickets store.TicketStore, codec *token.Codec, notifier Notifier, storeTimeout time.Duration) *RedemptionService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &RedemptionService{
		tickets:       tickets,
		codec:         codec,
		notifier:      notifier,
		storeTimeout:  storeTimeout,
		noticeTimeout: noticeTimeout,
		now:           time.Now,
	}
}

// Redeem verifies a scanned token and marks its ticket used. Exactly one
// caller per ticket ever gets a valid result. Unknown and already used
// tickets are reported in the result, not as errors.
func (s *RedemptionService) Redeem(ctx context.Context, tok string) (models.Redemption, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		monitoring.TrackRedemption(string(status.CodeNoToken))
		return models.Redemption{}, status.Wrap(status.CodeNoToken, "verify", status.ErrInvalidInput)
	}

	claims, err := s.codec.Verify(tok)
	if err != nil {
		code := status.CodeBadToken
		if errors.Is(err, status.ErrSignatureMismatch) {
			code = status.CodeSignInvalid
		}
		monitoring.TrackRedemption(string(code))
		return models.Redemption{}, status.Wrap(code, "verify", err)
	}

	log := slog.With("ticket_id", claims.TicketID, "order_id", claims.OrderID, "event_id", claims.EventID)

	claimCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	ticket, err := s.tickets.ClaimIfUnused(claimCtx, claims.TicketID)
	cancel()

	switch {
	case err == nil:
		monitoring.TrackRedemption("valid")
		log.Info("ticket redeemed")
		s.publish(ctx, ticket)
		return redemptionOf(ticket, true, ""), nil

	case errors.Is(err, status.ErrAlreadyUsed):
		lookupCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()

		ticket, err := s.tickets.Lookup(lookupCtx, claims.TicketID)
		if err != nil {
			monitoring.TrackRedemption(string(status.CodeDBLookupFailed))
			return models.Redemption{}, status.Wrap(status.CodeDBLookupFailed, "lookup", err)
		}
		monitoring.TrackRedemption(string(status.CodeAlreadyUsed))
		log.Warn("ticket already used", "used_at", ticket.UsedAt)
		return redemptionOf(ticket, false, status.CodeAlreadyUsed), nil

	case errors.Is(err, status.ErrNotFound):
		monitoring.TrackRedemption(string(status.CodeNotFound))
		log.Warn("ticket not found")
		return models.Redemption{
			Reason:   string(status.CodeNotFound),
			TicketID: claims.TicketID,
			OrderID:  claims.OrderID,
			EventID:  claims.EventID,
		}, nil

	default:
		monitoring.TrackRedemption(string(status.CodeDBClaimFailed))
		return models.Redemption{}, status.Wrap(status.CodeDBClaimFailed, "claim", err)
	}
}

// Lookup returns the stored ticket without touching its status.
func (s *RedemptionService) Lookup(ctx context.Context, ticketID string) (models.Ticket, error) {
	if err := token.ValidateField("ticket_id", ticketID); err != nil {
		return models.Ticket{}, status.Wrap(status.CodeInvalidInput, "validate", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	ticket, err := s.tickets.Lookup(ctx, ticketID)
	switch {
	case errors.Is(err, status.ErrNotFound):
		return models.Ticket{}, status.Wrap(status.CodeNotFound, "lookup", err)
	case err != nil:
		return models.Ticket{}, status.Wrap(status.CodeDBLookupFailed, "lookup", err)
	}
	return ticket, nil
}

func (s *RedemptionService) publish(ctx context.Context, t models.Ticket) {
	at := s.now().UTC()
	if t.UsedAt != nil {
		at = *t.UsedAt
	}

	// The claim is committed; a slow sink must not hold the gate.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.noticeTimeout)
	defer cancel()

	err := s.notifier.Publish(ctx, models.Notice{
		Type:       models.NoticeRedeemed,
		TicketID:   t.ID,
		OrderID:    t.OrderID,
		EventID:    t.EventID,
		TicketType: t.TicketType,
		Count:      1,
		At:         at,
	})
	if err != nil {
		slog.Warn("publishing redeemed notice", "ticket_id", t.ID, "error", err)
	}
}

func redemptionOf(t models.Ticket, valid bool, reason status.Code) models.Redemption {
	return models.Redemption{
		Valid:      valid,
		Reason:     string(reason),
		TicketID:   t.ID,
		OrderID:    t.OrderID,
		EventID:    t.EventID,
		TicketType: t.TicketType,
		Name:       t.Name,
		UsedAt:     t.UsedAt,
	}
}
