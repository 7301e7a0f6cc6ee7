package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/axdashboard/axdash/internal/pkg/constants"
	"github.com/axdashboard/axdash/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	ac := h.controllers.Admin
	if ac == nil {
		return
	}
	adminGroup := app.Group(constants.AdminRoute, middleware.RequireAdmin())

	// Webhook dead letters
	adminGroup.Get("/webhooks/dead-letter", ac.HandleDeadLetterList)
	adminGroup.Post("/webhooks/:id/replay", ac.HandleReplay)

	// Queue monitor
	adminGroup.Get("/queue/stats", ac.HandleQueueStats)

	// Reporting channel filters
	adminGroup.Get("/source-filters", ac.HandleSourceFilters)
}
