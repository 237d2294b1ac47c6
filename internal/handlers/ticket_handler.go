package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ticket-gate/internal/status"
	"ticket-gate/internal/tilda"
	"ticket-gate/models"

	"github.com/pocketbase/pocketbase/core"
)

const maxWebhookBody = 1 << 20

type Issuer interface {
	Issue(ctx context.Context, order models.PaidOrder) (models.IssueResult, error)
	Resend(ctx context.Context, orderID, eventID string) (int, error)
}

type Redeemer interface {
	Redeem(ctx context.Context, token string) (models.Redemption, error)
	Lookup(ctx context.Context, ticketID string) (models.Ticket, error)
}

type TicketHandler struct {
	issuer   Issuer
	redeemer Redeemer
}

func NewTicketHandler(issuer Issuer, redeemer Redeemer) *TicketHandler {
	return &TicketHandler{
		issuer:   issuer,
		redeemer: redeemer,
	}
}

// TildaWebhook issues tickets for a paid Tilda order.
//
// GET and HEAD answer a ping, ?bind=1 acknowledges without doing anything so
// the URL can be attached in Tilda, and a test=test probe is treated as a ping.
func (h *TicketHandler) TildaWebhook(e *core.RequestEvent) error {
	switch e.Request.Method {
	case http.MethodGet, http.MethodHead:
		return e.JSON(http.StatusOK, map[string]any{"ok": true, "ping": true})
	case http.MethodPost:
	default:
		return writeError(e, status.Wrap(status.CodeMethod, "webhook", status.ErrInvalidInput))
	}

	body, err := io.ReadAll(io.LimitReader(e.Request.Body, maxWebhookBody))
	if err != nil {
		return writeError(e, status.Wrap(status.CodeBadJSON, "read body", err))
	}

	payload, err := tilda.Decode(body, e.Request.Header.Get("Content-Type"))
	if err != nil {
		return writeError(e, status.Wrap(status.CodeBadJSON, "decode", err))
	}

	if e.Request.URL.Query().Get("bind") == "1" {
		return e.JSON(http.StatusOK, map[string]any{"ok": true, "bind": true})
	}
	if payload.IsTestProbe() {
		return e.JSON(http.StatusOK, map[string]any{"ok": true, "ping": true})
	}

	order, err := payload.Normalize()
	if err != nil {
		return writeError(e, err)
	}

	// Issuance runs to completion even if Tilda hangs up; every step has its
	// own timeout.
	ctx := context.WithoutCancel(e.Request.Context())

	res, err := h.issuer.Issue(ctx, order)
	if err != nil {
		slog.Error("h.issuer.Issue()", "order_id", order.OrderID, "stored", len(res.TicketIDs), "error", err)
		return writeError(e, err)
	}

	if res.Issued == 0 {
		return e.JSON(http.StatusOK, map[string]any{
			"ok":       true,
			"issued":   0,
			"existing": res.Existing,
			"order_id": res.OrderID,
		})
	}
	return e.JSON(http.StatusOK, map[string]any{
		"ok":       true,
		"issued":   res.Issued,
		"order_id": res.OrderID,
	})
}

type validateRequest struct {
	Token string `json:"token" form:"token"`
}

// ValidateTicket redeems a scanned token at the gate.
func (h *TicketHandler) ValidateTicket(e *core.RequestEvent) error {
	var req validateRequest
	if err := e.BindBody(&req); err != nil {
		return writeError(e, status.Wrap(status.CodeBadJSON, "decode", err))
	}

	r, err := h.redeemer.Redeem(e.Request.Context(), req.Token)
	if err != nil {
		return writeError(e, err)
	}

	switch {
	case r.Valid:
		return e.JSON(http.StatusOK, ticketBody(r, map[string]any{"ok": true, "used": false}))
	case r.Reason == string(status.CodeAlreadyUsed):
		return e.JSON(http.StatusOK, ticketBody(r, map[string]any{"ok": false, "error": r.Reason, "used": true}))
	default:
		return e.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": r.Reason})
	}
}

func ticketBody(r models.Redemption, body map[string]any) map[string]any {
	body["tid"] = r.TicketID
	body["order_id"] = r.OrderID
	body["name"] = r.Name
	body["type"] = r.TicketType

	var usedAt *string
	if r.UsedAt != nil {
		s := r.UsedAt.UTC().Format(time.RFC3339Nano)
		usedAt = &s
	}
	body["used_at"] = usedAt
	return body
}

// DebugTildaEcho shows how a Tilda form posts its payload. It is only routed
// in development.
func (h *TicketHandler) DebugTildaEcho(e *core.RequestEvent) error {
	body, err := io.ReadAll(io.LimitReader(e.Request.Body, maxWebhookBody))
	if err != nil {
		return writeError(e, status.Wrap(status.CodeBadJSON, "read body", err))
	}

	echo := tilda.Describe(body, e.Request.Header.Get("Content-Type"))
	slog.Info("tilda webhook debug",
		"content_type", echo.ContentType, "keys", echo.Keys, "payment_keys", echo.PaymentKeys, "raw", string(body))

	return e.JSON(http.StatusOK, map[string]any{
		"ok":          true,
		"contentType": echo.ContentType,
		"keys":        echo.Keys,
		"paymentKeys": echo.PaymentKeys,
		"sample":      echo.Sample,
	})
}

// writeError maps caller mistakes to 400 and dependency failures to 500.
func writeError(e *core.RequestEvent, err error) error {
	code := status.CodeOf(err)

	switch {
	case code == status.CodeMethod:
		return e.JSON(http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": code})
	case code == status.CodeUnauthorized:
		return e.JSON(http.StatusUnauthorized, map[string]any{"ok": false, "error": code})
	case status.IsInput(code):
		return e.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": code})
	}

	slog.Error("request failed", "path", e.Request.URL.Path, "code", code, "error", err)
	return e.JSON(http.StatusInternalServerError, map[string]any{
		"ok":      false,
		"error":   code,
		"message": err.Error(),
	})
}
