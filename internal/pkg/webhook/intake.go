package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/jobqueue"
	"github.com/axdashboard/axdash/internal/pkg/metrics"
)

var ErrInvalidPayload = errors.New("invalid webhook payload")

// Enqueuer schedules asynchronous processing of a stored event.
type Enqueuer interface {
	EnqueueWebhookEvent(ctx context.Context, eventID uint, eventType string) (*jobqueue.Job, error)
}

// Receipt describes what Record did with a delivery. Event is nil for a
// repeat caught by the recent-delivery window.
type Receipt struct {
	Event     *models.WebhookEvent
	Duplicate bool
	Enqueued  bool
}

// Intake persists deliveries before acknowledging them and hands them to the queue.
type Intake struct {
	events repository.WebhookEventRepository
	queue  Enqueuer
	recent RecentDeliveries
}

func NewIntake(events repository.WebhookEventRepository, queue Enqueuer) *Intake {
	return &Intake{events: events, queue: queue}
}

// WithRecentDeliveries drops byte-identical deliveries without a webhook id
// that arrive within the window of recent.
func (i *Intake) WithRecentDeliveries(recent RecentDeliveries) *Intake {
	i.recent = recent
	return i
}

// Record stores the raw body and enqueues it once. Deliveries carrying a
// provider webhook id are deduplicated by the store; others only by the
// recent-delivery window, when one is set. A failed enqueue is not returned:
// the stored event is picked up by the stale sweep.
func (i *Intake) Record(ctx context.Context, body []byte) (*Receipt, error) {
	payload, err := ParsePayload(body)
	if err != nil {
		metrics.WebhookEventsReceived.WithLabelValues("unknown", "invalid").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	eventType := payload.Type
	if eventType == "" {
		eventType = "unknown"
	}

	var windowKey string
	if payload.WebhookID == "" && i.recent != nil {
		key := DeliveryKey(payload, body)
		first, err := i.recent.FirstSeen(ctx, key)
		switch {
		case err != nil:
			log.Warnf("[Webhook] Recent delivery check failed, storing anyway: %v", err)
		case first:
			windowKey = key
		default:
			metrics.WebhookEventsReceived.WithLabelValues(eventType, "duplicate").Inc()
			log.Infof("[Webhook] Repeated delivery %s within window ignored", key)
			return &Receipt{Duplicate: true}, nil
		}
	}

	created, stored, err := i.events.CreateIfNotExists(ctx, &models.WebhookEvent{
		EventID:       EventID(payload, body),
		EventType:     eventType,
		OpportunityID: payload.ID,
		LocationID:    payload.LocationID,
		PayloadJSON:   string(body),
	})
	if err != nil {
		metrics.WebhookEventsReceived.WithLabelValues(eventType, "error").Inc()
		if windowKey != "" {
			// the provider retries this delivery after the 500
			if ferr := i.recent.Forget(ctx, windowKey); ferr != nil {
				log.Warnf("[Webhook] Could not clear recent delivery %s: %v", windowKey, ferr)
			}
		}
		return nil, fmt.Errorf("persist webhook event: %w", err)
	}

	receipt := &Receipt{Event: stored, Duplicate: !created}
	if !created {
		metrics.WebhookEventsReceived.WithLabelValues(eventType, "duplicate").Inc()
		log.Infof("[Webhook] Duplicate delivery %s ignored", stored.EventID)
		return receipt, nil
	}
	metrics.WebhookEventsReceived.WithLabelValues(eventType, "accepted").Inc()

	if _, err := i.queue.EnqueueWebhookEvent(ctx, stored.ID, stored.EventType); err != nil {
		log.Errorf("[Webhook] Stored event %d but could not enqueue it: %v", stored.ID, err)
		return receipt, nil
	}
	receipt.Enqueued = true
	log.Infof("[Webhook] Webhook event received: %s for opportunity %s", eventType, payload.ID)
	return receipt, nil
}

// Replay clears the terminal state of a stored event and enqueues it again.
func (i *Intake) Replay(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	event, err := i.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := i.events.ResetForReplay(ctx, id); err != nil {
		return nil, fmt.Errorf("reset webhook event %d: %w", id, err)
	}
	if _, err := i.queue.EnqueueWebhookEvent(ctx, event.ID, event.EventType); err != nil {
		return nil, fmt.Errorf("enqueue webhook event %d: %w", id, err)
	}
	log.Infof("[Webhook] Replaying event %d (%s)", event.ID, event.EventType)
	return i.events.GetByID(ctx, id)
}
