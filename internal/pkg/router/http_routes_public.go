package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/axdashboard/axdash/internal/pkg/constants"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	c := h.controllers

	// OAuth
	auth := app.Group(constants.AuthRoute)
	auth.Get("/login", c.Auth.HandleLogin)
	auth.Get("/callback", c.Auth.HandleCallback)
	auth.Get("/protected-resource", c.Auth.HandleProtectedResource)

	// Provider webhook intake
	hooks := app.Group(constants.WebhookRoute, h.rateLimit("WEBHOOK_RATE_LIMIT", 600))
	hooks.Post("/", c.Webhook.HandleOpportunityWebhook)

	// Dashboard reports
	reports := app.Group(constants.OpportunitiesRoute, h.rateLimit("REPORT_RATE_LIMIT", 120))
	reports.Get(constants.ReportLeads, c.Reports.HandleLeads)
	reports.Get(constants.ReportTrend, c.Reports.HandleTrend)
	reports.Get(constants.ReportTreatments, c.Reports.HandleTreatments)
	reports.Get(constants.ReportRevenue, c.Reports.HandleRevenue)
	reports.Get(constants.ReportNurture, c.Reports.HandleNurture)
	reports.Get(constants.ReportMarketingROI, c.Reports.HandleMarketingROI)
	reports.Get(constants.ReportAcquisitionCAC, c.Reports.HandleAcquisitionCost)
}
