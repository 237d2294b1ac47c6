package config

import (
	"testing"
	"time"

	"ticket-gate/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TICKET_SECRET", "s")

	cfg := LoadConfig()
	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "default-event", cfg.EventID)
	assert.Equal(t, "Standard", cfg.DefaultTicketType)
	assert.Equal(t, 20, cfg.MaxTicketsPerOrder)
	assert.Equal(t, 600, cfg.QRSize)
	assert.Equal(t, StorePocketBase, cfg.StoreDriver)
	assert.Equal(t, ClaimStore, cfg.OrderClaim)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 40*time.Second, cfg.DeliveryTimeout)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "ticket-events", cfg.PubNubChannel)
	assert.Equal(t, "ticket-events", cfg.NoticeStream)
	assert.Equal(t, time.Minute, cfg.ScanRateWindow)
	assert.False(t, cfg.SMTPEnabled())
	assert.False(t, cfg.PubNubEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("QR_SIZE", "300")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("SMTP_BACKOFF", "not-a-duration")
	t.Setenv("ENABLE_METRICS", "false")

	cfg := LoadConfig()
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, 300, cfg.QRSize)
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, time.Second, cfg.SMTPBackoff)
	assert.False(t, cfg.EnableMetrics)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		missing string
	}{
		{"No secret", func(c *Config) { c.TicketSecret = "" }, "TICKET_SECRET"},
		{"Postgres without url", func(c *Config) { c.StoreDriver = StorePostgres }, "DATABASE_URL"},
		{"Redis claim without url", func(c *Config) { c.OrderClaim = ClaimRedis }, "REDIS_URL"},
		{"SMTP without sender", func(c *Config) { c.SMTPHost = "smtp.example.com" }, "SMTP_FROM"},
		{"Unknown driver", func(c *Config) { c.StoreDriver = "mongo" }, "STORE_DRIVER"},
		{"Unknown claim", func(c *Config) { c.OrderClaim = "zookeeper" }, "ORDER_CLAIM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{TicketSecret: "s", StoreDriver: StoreMemory, OrderClaim: ClaimStore}
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, status.ErrConfig)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestValidate_ListsAllMissing(t *testing.T) {
	cfg := &Config{StoreDriver: StorePostgres, OrderClaim: ClaimRedis}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TICKET_SECRET, DATABASE_URL, REDIS_URL")
}
