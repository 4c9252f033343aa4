package auth

import (
	"starauto-backend/internal/auth"
	"starauto-backend/internal/middleware"
	"starauto-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for auth endpoints. Sign-in itself happens at
// the identity provider; this API only reads and revokes its tokens.
type Handlers struct {
	Rdb          *redis.Client
	CookieName   string
	SecureCookie bool
	AdminEmails  []string
}

// Me GET /api/auth/me
func (h *Handlers) Me(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return response.Unauthorized(c, auth.ErrNotAuthenticated.Error())
	}
	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"user_id":  user.UserID,
			"email":    user.Email,
			"role":     user.Role,
			"is_admin": auth.IsAdmin(user.Email, h.AdminEmails),
		},
	})
}

// Logout DELETE /api/auth/logout: revoke the current token and clear the cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	token := middleware.GetSessionToken(c)
	if user != nil && token != "" && h.Rdb != nil {
		if err := auth.Revoke(c.UserContext(), h.Rdb, token, user.ExpiresAt); err != nil {
			log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("revoke session token")
			return response.Internal(c, "Failed to log out", nil)
		}
	}

	if h.CookieName != "" {
		cookie := middleware.SessionCookieConfig(h.CookieName, h.SecureCookie)
		cookie.MaxAge = -1
		c.Cookie(&cookie)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Logged out successfully"})
}
