package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/axdashboard/axdash/internal/pkg/webhook"
)

// WebhookRecorder stores a raw delivery for asynchronous processing.
type WebhookRecorder interface {
	Record(ctx context.Context, body []byte) (*webhook.Receipt, error)
}

type WebhookController struct {
	intake WebhookRecorder
}

func NewWebhookController(intake WebhookRecorder) *WebhookController {
	return &WebhookController{intake: intake}
}

// HandleOpportunityWebhook POST /webhook/
// The delivery is acknowledged once it is stored; duplicates are acknowledged too.
//
// Any failure to persist answers 500. The provider redelivers on non-2xx, so a
// delivery is never acknowledged before it is durable. Malformed bodies answer
// 400 and are not worth a retry.
func (wc *WebhookController) HandleOpportunityWebhook(c *fiber.Ctx) error {
	receipt, err := wc.intake.Record(c.UserContext(), c.Body())
	if errors.Is(err, webhook.ErrInvalidPayload) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid webhook payload"})
	}
	if err != nil {
		log.Errorf("[Webhook] Could not store delivery: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to store webhook event"})
	}

	res := fiber.Map{"success": true}
	if receipt.Duplicate {
		res["duplicate"] = true
	}
	return c.JSON(res)
}
