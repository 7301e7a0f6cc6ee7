package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/axdashboard/axdash/app/controllers"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Controllers are the handlers the routes dispatch to. Admin may be nil when
// the job queue is unavailable.
type Controllers struct {
	Auth    *controllers.AuthController
	Webhook *controllers.WebhookController
	Reports *controllers.ReportController
	Admin   *controllers.AdminWebhookController
}

func InstallRouter(app *fiber.App, c Controllers) {
	setup(app, NewHttpRouter(c, newLimiterStorage()))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
