package cmd

import (
	"ticket-gate/internal/handlers"
	"ticket-gate/security"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

const (
	webhookPath  = "/api/v1/webhook/tilda-paid"
	validatePath = "/api/v1/tickets/validate"
	adminPrefix  = "/api/v1/admin"
	debugPath    = "/api/v1/debug/tilda-echo"
	healthPath   = "/health"
)

type routes struct {
	tickets      *handlers.TicketHandler
	admin        *handlers.AdminHandler
	health       *handlers.HealthHandler
	webhookGuard *security.KeyGuard
	adminGuard   *security.KeyGuard
	limiter      *security.RateLimiter // nil without Redis
	debug        bool
}

func registerRoutes(r *router.Router[*core.RequestEvent], rt routes) {
	// Webhook endpoints. Only deliveries need the key; Tilda's GET/HEAD
	// reachability ping stays open.
	r.POST(webhookPath, rt.tickets.TildaWebhook).
		BindFunc(rt.webhookGuard.Middleware())
	r.Any(webhookPath, rt.tickets.TildaWebhook)

	// Gate endpoints
	validate := r.POST(validatePath, rt.tickets.ValidateTicket)
	if rt.limiter != nil {
		validate.BindFunc(rt.limiter.Middleware())
	}

	// Admin endpoints
	if rt.adminGuard.Enabled() {
		admin := r.Group(adminPrefix)
		admin.BindFunc(rt.adminGuard.Middleware())
		admin.POST("/orders/{orderId}/resend", rt.admin.ResendOrder)
		admin.GET("/tickets/{ticketId}", rt.admin.GetTicket)
	}

	// Debug endpoint for inspecting Tilda payloads
	if rt.debug {
		r.POST(debugPath, rt.tickets.DebugTildaEcho)
	}

	r.GET(healthPath, rt.health.Health)
}
