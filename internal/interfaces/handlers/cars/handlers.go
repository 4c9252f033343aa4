package cars

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	carsvc "starauto-backend/internal/application/cars"
	"starauto-backend/internal/domain"
	"starauto-backend/internal/middleware"
	"starauto-backend/internal/pkg/response"
	"starauto-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service        *carsvc.Service
	ImagelessGrace time.Duration
}

// GET /api/:listingId
func (h *Handlers) GetCar(c *fiber.Ctx) error {
	id, ok := listingID(c)
	if !ok {
		return badListingID(c)
	}
	car, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err, "Internal server error")
	}
	return c.JSON(car.View())
}

// PATCH /api/:listingId: partial update, returns the updated listing
func (h *Handlers) UpdateCar(c *fiber.Ctx) error {
	id, ok := listingID(c)
	if !ok {
		return badListingID(c)
	}
	body, err := decodeObject(c)
	if err != nil {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	if len(body) == 0 {
		return response.BadRequest(c, carsvc.ErrEmptyUpdate.Error(), nil)
	}
	car, err := h.Service.Update(c.UserContext(), id, body, actor(c))
	if err != nil {
		return h.fail(c, err, "Failed to update car")
	}
	return c.JSON(car.View())
}

// DELETE /api/:listingId: row first, photos best effort
func (h *Handlers) DeleteCar(c *fiber.Ctx) error {
	id, ok := listingID(c)
	if !ok {
		return badListingID(c)
	}
	if err := h.Service.Delete(c.UserContext(), id, actor(c)); err != nil {
		return h.fail(c, err, "Failed to delete car")
	}
	return c.JSON(fiber.Map{"success": true, "message": "Car deleted successfully"})
}

// POST /api/createCar: 201 with the created listing
func (h *Handlers) CreateCar(c *fiber.Ctx) error {
	body, err := decodeObject(c)
	if err != nil || len(body) == 0 {
		return response.BadRequest(c, "Invalid request body", nil)
	}
	car, err := h.Service.Create(c.UserContext(), body, actor(c))
	if err != nil {
		return h.fail(c, err, "Failed to create car")
	}
	return c.Status(fiber.StatusCreated).JSON(car.View())
}

// GET /api/getAllCars
func (h *Handlers) GetAllCars(c *fiber.Ctx) error {
	cars, err := h.Service.List(c.UserContext())
	if err != nil {
		return h.fail(c, err, "Failed to fetch cars")
	}
	return response.NoStore(c, fiber.Map{"cars": views(cars)})
}

// GET /api/findLastCar
func (h *Handlers) FindLastCar(c *fiber.Ctx) error {
	last, err := h.Service.LastStockID(c.UserContext())
	if err != nil {
		return h.fail(c, err, "Failed to fetch last car")
	}
	return c.JSON(fiber.Map{"lastCarId": last})
}

// GET /api/findWeeklySpecial
func (h *Handlers) FindWeeklySpecial(c *fiber.Ctx) error {
	car, err := h.Service.WeeklySpecial(c.UserContext())
	if err != nil {
		return h.fail(c, err, "Failed to fetch weekly special")
	}
	if car == nil {
		return response.NoStore(c, fiber.Map{"car": nil})
	}
	return response.NoStore(c, fiber.Map{"car": car.View()})
}

// GET /api/:listingId/events
func (h *Handlers) GetCarEvents(c *fiber.Ctx) error {
	id, ok := listingID(c)
	if !ok {
		return badListingID(c)
	}
	events, err := h.Service.Events(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err, "Failed to fetch car events")
	}
	return c.JSON(fiber.Map{"events": events})
}

// GET /api/findImagelessCars: listings whose photo step never landed
func (h *Handlers) FindImagelessCars(c *fiber.Ctx) error {
	grace := h.ImagelessGrace
	if q := c.Query("grace"); q != "" {
		d, err := time.ParseDuration(q)
		if err != nil || d < 0 {
			return response.BadRequest(c, "Invalid grace duration", fiber.Map{"received": q})
		}
		grace = d
	}
	cars, err := h.Service.ListImageless(c.UserContext(), grace)
	if err != nil {
		return h.fail(c, err, "Failed to fetch cars")
	}
	return response.NoStore(c, fiber.Map{"cars": views(cars), "grace": grace.String()})
}

func (h *Handlers) fail(c *fiber.Ctx, err error, fallback string) error {
	var verr *validation.Error
	switch {
	case errors.Is(err, carsvc.ErrNotFound):
		return response.NotFound(c, carsvc.ErrNotFound.Error())
	case errors.Is(err, carsvc.ErrEmptyUpdate):
		return response.BadRequest(c, err.Error(), nil)
	case errors.As(err, &verr):
		return response.BadRequest(c, "Missing or invalid fields", verr.Details)
	case errors.Is(err, carsvc.ErrInvalidField), errors.Is(err, carsvc.ErrImageURLPolicy):
		return response.BadRequest(c, err.Error(), nil)
	}
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg(fallback)
	return response.Internal(c, fallback, err.Error())
}

func listingID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("listingId"), 10, 64)
	return id, err == nil && id > 0
}

func badListingID(c *fiber.Ctx) error {
	return response.BadRequest(c, "Invalid listing ID", fiber.Map{"received": c.Params("listingId")})
}

func decodeObject(c *fiber.Ctx) (map[string]interface{}, error) {
	var body map[string]interface{}
	if len(c.Body()) == 0 {
		return map[string]interface{}{}, nil
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]interface{}{}
	}
	return body, nil
}

func actor(c *fiber.Ctx) string {
	if u := middleware.GetUser(c); u != nil {
		return u.Email
	}
	return ""
}

func views(cars []domain.Car) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(cars))
	for i := range cars {
		out = append(out, cars[i].View())
	}
	return out
}
