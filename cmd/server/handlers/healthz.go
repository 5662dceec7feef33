package handlers

import (
	"context"
	"time"

	"tourbook/internal/logger"

	"github.com/gofiber/fiber/v2"
)

const HealthzTimeout = 5 * time.Second

// Check is one dependency probed by the health endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Healthz returns the health of the server and its dependencies.
// @Summary Health check
// @Description Check if the server and its backing stores are reachable
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /healthz [get]
func Healthz(checks ...Check) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), HealthzTimeout)
		defer cancel()

		for _, check := range checks {
			if err := check.Ping(ctx); err != nil {
				logger.L().Warn("health check failed", "dependency", check.Name, "error", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"status": "down",
					"error":  check.Name + ": " + err.Error(),
				})
			}
		}

		return c.JSON(fiber.Map{
			"status": "ok",
		})
	}
}
