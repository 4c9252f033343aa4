package middleware

import (
	"context"
	"strings"
	"time"

	"starauto-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionConfig for access-token sessions; logouts are kept in Redis.
type SessionConfig struct {
	JWTSecret  string
	CookieName string
	Redis      *redis.Client
}

const (
	userLocal         = "user"
	sessionTokenLocal = "session_token"
	revocationTimeout = 500 * time.Millisecond
)

// Session resolves the caller from the provider access token, read from the
// session cookie or an Authorization: Bearer header. Invalid, expired or
// revoked tokens leave the request anonymous; RequireAuth decides what that means.
func Session(cfg SessionConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userLocal, nil)
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" && cfg.CookieName != "" {
			token = c.Cookies(cfg.CookieName)
		}
		if token == "" {
			return c.Next()
		}

		claims, err := auth.ParseAccessToken(cfg.JWTSecret, token)
		if err != nil {
			log.Debug().Err(err).Str("trace_id", GetTraceID(c)).Msg("ignoring invalid access token")
			return c.Next()
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), revocationTimeout)
		revoked, err := auth.IsRevoked(ctx, cfg.Redis, token)
		cancel()
		if err != nil {
			// fail closed
			log.Error().Err(err).Str("trace_id", GetTraceID(c)).Msg("revocation lookup failed")
			return c.Next()
		}
		if revoked {
			return c.Next()
		}

		c.Locals(userLocal, claims.User())
		c.Locals(sessionTokenLocal, token)
		return c.Next()
	}
}

// GetUser returns the request user (nil if anonymous).
func GetUser(c *fiber.Ctx) *auth.SessionUser {
	u, _ := c.Locals(userLocal).(*auth.SessionUser)
	return u
}

// GetSessionToken returns the raw access token of an authenticated request.
func GetSessionToken(c *fiber.Ctx) string {
	t, _ := c.Locals(sessionTokenLocal).(string)
	return t
}

// SessionCookieConfig returns the options used to clear the session cookie.
func SessionCookieConfig(name string, secure bool) fiber.Cookie {
	return fiber.Cookie{
		Name:     name,
		Path:     "/",
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
	}
}

func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
