package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-gate/config"
	"ticket-gate/internal/handlers"
	"ticket-gate/internal/mail"
	"ticket-gate/internal/notify"
	"ticket-gate/internal/render"
	"ticket-gate/internal/services"
	"ticket-gate/internal/store"
	"ticket-gate/internal/token"
	_ "ticket-gate/migrations"
	"ticket-gate/monitoring"
	"ticket-gate/security"
	"ticket-gate/utils"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
)

// orderClaimTTL bounds how long a Redis order claim blocks re-issuance.
const orderClaimTTL = 30 * 24 * time.Hour

type ticketStore interface {
	store.TicketStore
	store.OrderClaimer
}

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	codec, err := token.NewCodec(cfg.TicketSecret)
	if err != nil {
		return err
	}

	// Initialize Redis
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = utils.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	tickets, closeStore, err := openStore(ctx, app, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var claims store.OrderClaimer
	switch cfg.OrderClaim {
	case config.ClaimStore:
		claims = tickets
	case config.ClaimRedis:
		claims = store.NewRedisClaimer(redisClient, orderClaimTTL)
	default:
		claims = store.NoopClaimer{}
	}

	var mailer services.Deliverer = mail.Noop{}
	if cfg.SMTPEnabled() {
		mailer = mail.NewSMTP(mail.Config{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUser,
			Password:    cfg.SMTPPass,
			From:        cfg.SMTPFrom,
			FromName:    cfg.SMTPFromName,
			MaxAttempts: cfg.SMTPMaxAttempts,
			Backoff:     cfg.SMTPBackoff,
		})
	} else {
		slog.Warn("SMTP_HOST not set, ticket emails will not be sent")
	}

	var notices notify.Multi
	if cfg.PubNubEnabled() {
		notices = append(notices, notify.NewPubNub(notify.Config{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
			Channel:      cfg.PubNubChannel,
		}))
	}
	if redisClient != nil && cfg.NoticeStream != "" {
		stream, err := notify.NewRedisStream(redisClient, cfg.NoticeStream)
		if err != nil {
			return err
		}
		defer stream.Close()
		notices = append(notices, stream)
	}

	var notifier services.Notifier = notify.Noop{}
	if len(notices) > 0 {
		notifier = notices
	}

	// Initialize services
	issuanceService := services.NewIssuanceService(tickets, claims, codec, render.NewQR(), mailer, notifier, services.IssuanceConfig{
		DefaultEventID:    cfg.EventID,
		EventName:         cfg.EventName,
		DefaultTicketType: cfg.DefaultTicketType,
		MaxTickets:        cfg.MaxTicketsPerOrder,
		QRSize:            cfg.QRSize,
		StoreTimeout:      cfg.StoreTimeout,
		DeliveryTimeout:   cfg.DeliveryTimeout,
	})
	redemptionService := services.NewRedemptionService(tickets, codec, notifier, cfg.StoreTimeout)

	// Initialize handlers
	ticketHandler := handlers.NewTicketHandler(issuanceService, redemptionService)
	adminHandler := handlers.NewAdminHandler(issuanceService, redemptionService)
	healthHandler := handlers.NewHealthHandler(tickets, redisClient)

	webhookGuard := security.NewKeyGuard(cfg.WebhookKeyHash, "X-Webhook-Key", "key")
	adminGuard := security.NewKeyGuard(cfg.AdminKeyHash, "X-Admin-Key", "")

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.IsDevelopment(),
	})

	if cfg.EnableMetrics {
		go monitoring.Serve(ctx, ":"+cfg.MetricsPort)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	var limiter *security.RateLimiter
	if redisClient != nil {
		limiter = security.NewRateLimiter(redisClient, "scan", cfg.ScanRateLimit, cfg.ScanRateWindow)
	}
	if !adminGuard.Enabled() {
		slog.Warn("ADMIN_KEY_HASH not set, admin endpoints disabled")
	}

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		registerRoutes(e.Router, routes{
			tickets:      ticketHandler,
			admin:        adminHandler,
			health:       healthHandler,
			webhookGuard: webhookGuard,
			adminGuard:   adminGuard,
			limiter:      limiter,
			debug:        cfg.IsDevelopment(),
		})

		slog.Info("server routes registered",
			"store", cfg.StoreDriver, "order_claim", cfg.OrderClaim, "event_id", cfg.EventID)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// openStore returns the configured ticket store and a function releasing it.
func openStore(ctx context.Context, app *pocketbase.PocketBase, cfg *config.Config) (ticketStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := store.CreatePostgresSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Info("using postgres ticket store")
		return store.NewPostgres(db), func() { db.Close() }, nil

	case config.StoreMemory:
		slog.Warn("using in-memory ticket store, tickets are lost on restart")
		return store.NewMemory(), func() {}, nil

	default:
		return store.NewPocketBase(app), func() {}, nil
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("shutdown signal received, cleaning up")
	cancel()
}
