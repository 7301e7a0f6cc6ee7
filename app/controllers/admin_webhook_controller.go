package controllers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/jobqueue"
	"github.com/axdashboard/axdash/internal/pkg/sourcefilter"
)

const (
	defaultDeadLetterPageSize = 50
	maxDeadLetterPageSize     = 200
)

// Replayer re-enqueues a stored webhook event.
type Replayer interface {
	Replay(ctx context.Context, id uint) (*models.WebhookEvent, error)
}

// QueueInspector reports the job queue state.
type QueueInspector interface {
	Snapshot(ctx context.Context) (*jobqueue.Snapshot, error)
}

// AdminWebhookController exposes operator views of the webhook pipeline and of
// the channel filters reports run with.
type AdminWebhookController struct {
	events   repository.WebhookEventRepository
	replayer Replayer
	queue    QueueInspector
}

func NewAdminWebhookController(events repository.WebhookEventRepository, replayer Replayer, queue QueueInspector) *AdminWebhookController {
	return &AdminWebhookController{
		events:   events,
		replayer: replayer,
		queue:    queue,
	}
}

// HandleDeadLetterList GET /admin/webhooks/dead-letter?page=&limit=
func (ac *AdminWebhookController) HandleDeadLetterList(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", defaultDeadLetterPageSize)
	if limit < 1 || limit > maxDeadLetterPageSize {
		limit = defaultDeadLetterPageSize
	}

	events, total, err := ac.events.ListDeadLettered(c.UserContext(), (page-1)*limit, limit)
	if err != nil {
		log.Errorf("[Admin] Could not list dead-lettered events: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Could not list dead-lettered events")
	}
	return c.JSON(fiber.Map{
		"events": events,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// HandleReplay POST /admin/webhooks/:id/replay
func (ac *AdminWebhookController) HandleReplay(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid event id")
	}

	event, err := ac.replayer.Replay(c.UserContext(), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "Webhook event not found")
	}
	if err != nil {
		log.Errorf("[Admin] Replay of event %d failed: %v", id, err)
		return errorJSON(c, fiber.StatusInternalServerError, "Replay failed")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"event": event})
}

// HandleQueueStats GET /admin/queue/stats
func (ac *AdminWebhookController) HandleQueueStats(c *fiber.Ctx) error {
	if ac.queue == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "Job queue not running")
	}
	snap, err := ac.queue.Snapshot(c.UserContext())
	if err != nil {
		log.Errorf("[Admin] Could not read queue stats: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Could not read queue stats")
	}
	return c.JSON(snap)
}

// sourceFilterView shows one channel label in both of its renderings.
type sourceFilterView struct {
	Label    string        `json:"label"`
	Document interface{}   `json:"document"`
	SQL      string        `json:"sql"`
	Args     []interface{} `json:"args"`
}

// HandleSourceFilters GET /admin/source-filters?label=
func (ac *AdminWebhookController) HandleSourceFilters(c *fiber.Ctx) error {
	labels := sourcefilter.Labels()
	if label := c.Query("label"); label != "" {
		labels = nil
		for _, l := range sourcefilter.Labels() {
			if l == label {
				labels = []string{l}
			}
		}
		if labels == nil {
			return errorJSON(c, fiber.StatusBadRequest, "Unknown source label")
		}
	}

	views := make([]sourceFilterView, 0, len(labels))
	for _, label := range labels {
		p := sourcefilter.Build(label)
		sql, args := p.SQL()
		views = append(views, sourceFilterView{Label: label, Document: p.Document(), SQL: sql, Args: args})
	}
	return c.JSON(fiber.Map{"filters": views})
}
