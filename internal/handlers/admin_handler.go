package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"ticket-gate/internal/status"
	"ticket-gate/utils"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type AdminHandler struct {
	issuer   Issuer
	redeemer Redeemer
}

func NewAdminHandler(issuer Issuer, redeemer Redeemer) *AdminHandler {
	return &AdminHandler{
		issuer:   issuer,
		redeemer: redeemer,
	}
}

// ResendOrder delivers the stored tickets of an order again.
func (h *AdminHandler) ResendOrder(e *core.RequestEvent) error {
	orderID := e.Request.PathValue("orderId")
	eventID := e.Request.URL.Query().Get("event_id")

	sent, err := h.issuer.Resend(context.WithoutCancel(e.Request.Context()), orderID, eventID)
	if status.CodeOf(err) == status.CodeNotFound {
		return e.JSON(http.StatusNotFound, map[string]any{"ok": false, "error": status.CodeNotFound})
	}
	if err != nil {
		slog.Error("h.issuer.Resend()", "order_id", orderID, "sent", sent, "error", err)
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"ok":       true,
		"order_id": orderID,
		"sent":     sent,
	})
}

// GetTicket shows a stored ticket without redeeming it.
func (h *AdminHandler) GetTicket(e *core.RequestEvent) error {
	ticket, err := h.redeemer.Lookup(e.Request.Context(), e.Request.PathValue("ticketId"))
	if status.CodeOf(err) == status.CodeNotFound {
		return e.JSON(http.StatusNotFound, map[string]any{"ok": false, "error": status.CodeNotFound})
	}
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{"ok": true, "ticket": ticket})
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
	redis *redis.Client
}

// NewHealthHandler checks the ticket store and, when redisClient is not nil,
// Redis.
func NewHealthHandler(store Pinger, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{store: store, redis: redisClient}
}

func (h *HealthHandler) Health(e *core.RequestEvent) error {
	ctx := e.Request.Context()
	checks := map[string]string{"store": "ok", "redis": "disabled"}
	healthy := true

	if err := h.store.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		healthy = false
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := utils.RedisHealthCheck(ctx, h.redis); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	if !healthy {
		return e.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "checks": checks})
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "healthy", "checks": checks})
}
