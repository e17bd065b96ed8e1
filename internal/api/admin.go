package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/david/cityguide/internal/logger"
)

const adminHeader = "X-Admin-Secret"

// resolveAdminSecret returns configured, or an ephemeral random secret when
// none is configured so admin routes are never open.
func resolveAdminSecret(configured string, log *logger.Logger) (string, error) {
	if secret := strings.TrimSpace(configured); secret != "" {
		return secret, nil
	}
	if log == nil {
		log = logger.Nop()
	}

	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
	}
	log.Warn().Msg("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// adminMiddleware accepts the secret in X-Admin-Secret or as a Bearer token.
func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.isAdmin(c.Request()) {
			return next(c)
		}
		return errorJSON(c, http.StatusUnauthorized, "Unauthorized admin access")
	}
}

func (s *Server) isAdmin(r *http.Request) bool {
	if secretEqual(r.Header.Get(adminHeader), s.adminSecret) {
		return true
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return secretEqual(auth[7:], s.adminSecret)
	}
	return false
}

func secretEqual(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
