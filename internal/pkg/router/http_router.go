package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/axdashboard/axdash/internal/pkg/env"
)

type HttpRouter struct {
	controllers Controllers
	storage     fiber.Storage
}

// NewHttpRouter creates the router. A nil storage keeps rate limit counters
// in process memory.
func NewHttpRouter(c Controllers, storage fiber.Storage) *HttpRouter {
	return &HttpRouter{controllers: c, storage: storage}
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
}

// rateLimit limits each client IP to max requests per window.
func (h HttpRouter) rateLimit(envKey string, def int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        env.GetEnvInt(envKey, def),
		Expiration: time.Minute,
		Storage:    h.storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		},
	})
}
