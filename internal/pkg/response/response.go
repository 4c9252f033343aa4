package response

import (
	"github.com/gofiber/fiber/v2"
)

// ErrorBody is the JSON error shape: {"error": "...", "details": ...}.
type ErrorBody struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// JSON sends body with the given status.
func JSON(c *fiber.Ctx, status int, body interface{}) error {
	return c.Status(status).JSON(body)
}

// NoStore sends a 200 with Cache-Control: no-store.
func NoStore(c *fiber.Ctx, body interface{}) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(fiber.StatusOK).JSON(body)
}

// Error sends a response with the standard error format.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	return c.Status(statusCode).JSON(ErrorBody{Error: message, Details: details})
}

func BadRequest(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, message, fiber.StatusBadRequest, details)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusNotFound, nil)
}

// Unauthorized sends 401 with the same shape as other errors.
// Use this for auth middleware so all errors are consistent.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusForbidden, nil)
}

func Internal(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, message, fiber.StatusInternalServerError, details)
}
