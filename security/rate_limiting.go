package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ticket-gate/internal/status"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per client in fixed Redis windows.
type RateLimiter struct {
	redis  *redis.Client
	scope  string
	limit  int64
	window time.Duration

	// KeyFunc identifies the caller; the client IP by default.
	KeyFunc func(e *core.RequestEvent) string
}

func NewRateLimiter(redisClient *redis.Client, scope string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:   redisClient,
		scope:   scope,
		limit:   int64(limit),
		window:  window,
		KeyFunc: func(e *core.RequestEvent) string { return e.RealIP() },
	}
}

func (r *RateLimiter) key(id string) string {
	return fmt.Sprintf("ratelimit:%s:%s", r.scope, id)
}

// Allow records one request for id and reports whether it is within the
// limit. Redis failures let the request through.
func (r *RateLimiter) Allow(ctx context.Context, id string) (bool, error) {
	key := r.key(id)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("rate limit incr %s: %w", key, err)
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
			return true, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
	}

	return count <= r.limit, nil
}

// Middleware rejects suspicious user agents and callers over the limit.
func (r *RateLimiter) Middleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if isSuspiciousUserAgent(e.Request.UserAgent()) {
			return e.JSON(http.StatusForbidden, map[string]any{
				"ok":    false,
				"error": status.CodeForbidden,
			})
		}

		id := r.KeyFunc(e)
		ok, err := r.Allow(e.Request.Context(), id)
		if err != nil {
			slog.Warn("rate limiter unavailable", "scope", r.scope, "client", id, "error", err)
		}
		if !ok {
			return e.JSON(http.StatusTooManyRequests, map[string]any{
				"ok":    false,
				"error": status.CodeRateLimited,
			})
		}

		return e.Next()
	}
}

func isSuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
