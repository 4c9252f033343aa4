package health

import (
	"crypto/subtle"
	"time"

	healthsvc "starauto-backend/internal/application/health"
	"starauto-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const serviceName = "starauto-api"

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Rdb            *redis.Client
	DB             healthsvc.DBPinger
	StorageDriver  string
	HealthAdminKey string
}

// Live GET /: plain liveness check.
func (h *Handlers) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"service": serviceName, "status": "ok"})
}

// JSON GET /health/json
func (h *Handlers) JSON(c *fiber.Ctx) error {
	r := healthsvc.Collect(c.UserContext(), h.Rdb, h.DB, h.StorageDriver)
	return response.NoStore(c, fiber.Map{
		"service":      serviceName,
		"status":       r.Status,
		"runtime":      r.Runtime,
		"traffic":      r.Traffic,
		"dependencies": r.Dependencies,
	})
}

// Errors GET /health/errors: recent 5xx entries, newest first.
func (h *Handlers) Errors(c *fiber.Ctx) error {
	if h.Rdb == nil {
		return c.JSON([]interface{}{})
	}
	entries, err := healthsvc.RecentErrors(c.UserContext(), h.Rdb)
	if err != nil {
		log.Warn().Err(err).Msg("read error log")
		return c.Status(fiber.StatusInternalServerError).JSON([]interface{}{})
	}
	return c.JSON(entries)
}

// Reset POST /health/reset?key=HEALTH_ADMIN_KEY
func (h *Handlers) Reset(c *fiber.Ctx) error {
	key := c.Query("key")
	if h.HealthAdminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.HealthAdminKey)) != 1 {
		return response.Forbidden(c, "Unauthorized")
	}
	if h.Rdb == nil {
		return response.Error(c, "Redis not configured", fiber.StatusServiceUnavailable, nil)
	}
	if err := healthsvc.Reset(c.UserContext(), h.Rdb, time.Now()); err != nil {
		return response.Internal(c, "Failed to reset stats", err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "message": "Stats reset successfully"})
}
