package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ticket-gate/internal/status"
)

const (
	StorePocketBase = "pocketbase"
	StorePostgres   = "postgres"
	StoreMemory     = "memory"

	ClaimStore = "store"
	ClaimRedis = "redis"
	ClaimOff   = "off"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Tickets
	TicketSecret       string
	EventID            string
	EventName          string
	DefaultTicketType  string
	MaxTicketsPerOrder int
	QRSize             int

	// Storage configuration
	StoreDriver  string
	DatabaseURL  string
	OrderClaim   string
	StoreTimeout time.Duration

	// Redis configuration
	RedisURL string

	// SMTP configuration
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPass        string
	SMTPFrom        string
	SMTPFromName    string
	SMTPMaxAttempts int
	SMTPBackoff     time.Duration
	DeliveryTimeout time.Duration

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string
	PubNubChannel      string

	// Redis stream receiving ticket notices, when Redis is configured
	NoticeStream string

	// Access
	WebhookKeyHash string
	AdminKeyHash   string
	ScanRateLimit  int
	ScanRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Tickets
		TicketSecret:       os.Getenv("TICKET_SECRET"),
		EventID:            getEnv("EVENT_ID", "default-event"),
		EventName:          getEnv("EVENT_NAME", "Event"),
		DefaultTicketType:  getEnv("DEFAULT_TICKET_TYPE", "Standard"),
		MaxTicketsPerOrder: getEnvAsInt("MAX_TICKETS_PER_ORDER", 20),
		QRSize:             getEnvAsInt("QR_SIZE", 600),

		// Storage
		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", StorePocketBase)),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		OrderClaim:   strings.ToLower(getEnv("ORDER_CLAIM", ClaimStore)),
		StoreTimeout: getEnvAsDuration("STORE_TIMEOUT", "5s"),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// SMTP
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:        getEnv("SMTP_USER", ""),
		SMTPPass:        getEnv("SMTP_PASS", ""),
		SMTPFrom:        getEnv("SMTP_FROM", ""),
		SMTPFromName:    getEnv("SMTP_FROM_NAME", ""),
		SMTPMaxAttempts: getEnvAsInt("SMTP_MAX_ATTEMPTS", 3),
		SMTPBackoff:     getEnvAsDuration("SMTP_BACKOFF", "1s"),
		DeliveryTimeout: getEnvAsDuration("DELIVERY_TIMEOUT", "40s"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "ticket-gate"),
		PubNubChannel:      getEnv("PUBNUB_CHANNEL", "ticket-events"),
		NoticeStream:       getEnv("NOTICE_STREAM", "ticket-events"),

		// Access
		WebhookKeyHash: getEnv("WEBHOOK_KEY_HASH", ""),
		AdminKeyHash:   getEnv("ADMIN_KEY_HASH", ""),
		ScanRateLimit:  getEnvAsInt("SCAN_RATE_LIMIT", 60),
		ScanRateWindow: getEnvAsDuration("SCAN_RATE_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

// Validate reports every missing or contradictory setting at once.
func (c *Config) Validate() error {
	var missing []string

	if c.TicketSecret == "" {
		missing = append(missing, "TICKET_SECRET")
	}

	switch c.StoreDriver {
	case StorePocketBase, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q: %w", c.StoreDriver, status.ErrConfig)
	}

	switch c.OrderClaim {
	case ClaimStore, ClaimOff:
	case ClaimRedis:
		if c.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return fmt.Errorf("ORDER_CLAIM %q: %w", c.OrderClaim, status.ErrConfig)
	}

	if c.SMTPHost != "" && c.SMTPFrom == "" {
		missing = append(missing, "SMTP_FROM")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(missing, ", "), status.ErrConfig)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func (c *Config) PubNubEnabled() bool {
	return c.PubNubPublishKey != "" && c.PubNubSubscribeKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
