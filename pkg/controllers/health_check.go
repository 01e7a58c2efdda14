package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ajvoice/aj-server/pkg/config"
)

type HealthCheckController struct {
	app *config.AppConfig
}

func NewHealthCheckController(app *config.AppConfig) *HealthCheckController {
	return &HealthCheckController{app: app}
}

// HandleHealthCheck pings every backing service and reports which ones
// are reachable. Any failure turns the response into a 503.
func (hc *HealthCheckController) HandleHealthCheck(c *fiber.Ctx) error {
	checks := fiber.Map{
		"nats":  true,
		"redis": true,
		"db":    true,
	}
	healthy := true

	if hc.app.NatsConn == nil || !hc.app.NatsConn.IsConnected() {
		checks["nats"] = false
		healthy = false
	}

	if err := hc.app.RDS.Ping(c.UserContext()).Err(); err != nil {
		checks["redis"] = false
		healthy = false
	}

	if sqlDB, err := hc.app.DB.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		checks["db"] = false
		healthy = false
	}

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status": healthy,
		"checks": checks,
	})
}
