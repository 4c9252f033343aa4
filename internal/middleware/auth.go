package middleware

import (
	"starauto-backend/internal/auth"
	"starauto-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetUser(c) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the session user is on the admin allowlist (401 anonymous, 403 not allowed).
func RequireAdmin(allowlist []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		if !auth.IsAdmin(user.Email, allowlist) {
			log.Warn().Str("trace_id", GetTraceID(c)).Str("email", user.Email).Str("path", c.Path()).Msg("non-admin write attempt")
			return response.Forbidden(c, auth.ErrNotAdmin.Error())
		}
		return c.Next()
	}
}
