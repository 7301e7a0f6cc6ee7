package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/axdashboard/axdash/internal/pkg/env"
)

// RequireAdmin protects operator routes with HTTP basic auth against
// ADMIN_USER and ADMIN_PASSWORD. Without a configured password every request
// is rejected.
func RequireAdmin() fiber.Handler {
	return RequireAdminWith(env.GetEnv("ADMIN_USER", "admin"), env.GetEnv("ADMIN_PASSWORD", ""))
}

func RequireAdminWith(user, password string) fiber.Handler {
	if password == "" {
		log.Warn("[Middleware] ADMIN_PASSWORD is not set, admin routes are disabled")
	}
	return basicauth.New(basicauth.Config{
		Realm: "axdash admin",
		Authorizer: func(u, p string) bool {
			if password == "" {
				return false
			}
			userOK := subtle.ConstantTimeCompare([]byte(u), []byte(user)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(p), []byte(password)) == 1
			return userOK && passOK
		},
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `basic realm="axdash admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "admin credentials required",
			})
		},
	})
}
