package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/axdashboard/axdash/internal/pkg/reporting"
)

var validate = validator.New()

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// bindQuery fills dst from the query string and validates its tags.
func bindQuery(c *fiber.Ctx, dst interface{}) error {
	if err := c.QueryParser(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// renderReportError maps typed report failures to their status. Anything else is
// logged and answered with fallback, which mirrors the dashboard contract.
func renderReportError(c *fiber.Ctx, report string, err error, fallback fiber.Map) error {
	var rerr *reporting.Error
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case reporting.KindValidation:
			return errorJSON(c, fiber.StatusBadRequest, rerr.Message)
		case reporting.KindMissingReference:
			return errorJSON(c, fiber.StatusInternalServerError, rerr.Message)
		}
	}
	log.Errorf("[Reporting] %s failed: %v", report, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fallback)
}
