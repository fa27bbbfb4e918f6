package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

func GetService(c *fiber.Ctx) string {
	service, _ := c.Locals("service").(string)
	return service
}

func ParamID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return int64(id), nil
}

type enqueueRequest struct {
	DelaySeconds int64 `json:"delay_seconds"`
}

// parseDelay reads the optional delay_seconds field. An empty body means no delay.
func parseDelay(c *fiber.Ctx) (time.Duration, error) {
	if len(c.Body()) == 0 {
		return 0, nil
	}
	var req enqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return 0, errors.New("invalid request body")
	}
	if req.DelaySeconds < 0 {
		return 0, errors.New("delay_seconds must not be negative")
	}
	return time.Duration(req.DelaySeconds) * time.Second, nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}
