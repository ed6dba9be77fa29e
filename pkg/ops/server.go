package ops

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ComponentCheck reports per-dependency health for a service.
type ComponentCheck func() map[string]bool

// NewApp builds the service ops app: GET /health with component statuses
// and GET /metrics with the prometheus registry. Services may add routes
// before Listen.
func NewApp(service string, check ComponentCheck) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               service,
		DisableStartupMessage: true,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		components := map[string]bool{}
		if check != nil {
			components = check()
		}
		status := "healthy"
		for _, ok := range components {
			if !ok {
				status = "degraded"
				break
			}
		}
		return c.JSON(fiber.Map{
			"status":     status,
			"service":    service,
			"components": components,
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}
