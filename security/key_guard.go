package security

import (
	"net/http"
	"strings"

	"ticket-gate/internal/status"

	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/crypto/bcrypt"
)

// KeyGuard admits requests carrying a shared key whose bcrypt hash is
// configured. The key is read from a header, or from a query parameter for
// callers such as Tilda that cannot set headers.
type KeyGuard struct {
	hash   []byte
	header string
	query  string
}

// NewKeyGuard returns a guard that lets everything through when hash is empty.
func NewKeyGuard(hash, header, query string) *KeyGuard {
	return &KeyGuard{hash: []byte(strings.TrimSpace(hash)), header: header, query: query}
}

func (g *KeyGuard) Enabled() bool {
	return len(g.hash) > 0
}

func (g *KeyGuard) Check(key string) bool {
	if !g.Enabled() {
		return true
	}
	if key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(key)) == nil
}

func (g *KeyGuard) keyFrom(r *http.Request) string {
	if g.header != "" {
		if key := r.Header.Get(g.header); key != "" {
			return key
		}
	}
	if g.query != "" {
		return r.URL.Query().Get(g.query)
	}
	return ""
}

func (g *KeyGuard) Middleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if !g.Check(g.keyFrom(e.Request)) {
			return e.JSON(http.StatusUnauthorized, map[string]any{
				"ok":    false,
				"error": status.CodeUnauthorized,
			})
		}
		return e.Next()
	}
}

// HashKey produces the value to put in WEBHOOK_KEY_HASH or ADMIN_KEY_HASH.
func HashKey(key string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
