package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/jobqueue"
	"github.com/axdashboard/axdash/internal/pkg/metrics"
)

var errBadJobPayload = errors.New("bad job payload")

// Archiver keeps a copy of events that exhausted their retries.
type Archiver interface {
	PutDeadLetter(ctx context.Context, event *models.WebhookEvent) error
}

// Worker runs webhook jobs taken from the queue against the event log.
type Worker struct {
	events    repository.WebhookEventRepository
	processor *Processor
	archive   Archiver
}

// NewWorker creates a worker. archive may be nil.
func NewWorker(events repository.WebhookEventRepository, processor *Processor, archive Archiver) *Worker {
	return &Worker{events: events, processor: processor, archive: archive}
}

// Register installs the worker's handlers on q.
func (w *Worker) Register(q *jobqueue.Queue) {
	q.Register(jobqueue.JobTypeWebhookEvent, w.HandleJob)
	q.OnDeadLetter(w.HandleDeadLetter)
}

// HandleJob processes one stored event. Events already processed or
// dead-lettered are acknowledged without work, so redelivered jobs are harmless.
func (w *Worker) HandleJob(ctx context.Context, job *jobqueue.Job) error {
	event, err := w.loadEvent(ctx, job)
	if err != nil {
		if errors.Is(err, errBadJobPayload) || errors.Is(err, gorm.ErrRecordNotFound) {
			return jobqueue.Permanent(err)
		}
		return err
	}
	if event.IsProcessed() || event.IsDeadLettered() {
		log.Debugf("[Webhook] Event %d already finished, skipping", event.ID)
		return nil
	}

	payload, err := ParsePayload([]byte(event.PayloadJSON))
	if err == nil {
		err = w.processor.Process(ctx, payload)
	}
	metrics.WebhookEventsProcessed.WithLabelValues(event.EventType, metrics.Outcome(err)).Inc()

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if markErr := w.events.MarkAttempt(ctx, event.ID, errMsg); markErr != nil {
		log.Warnf("[Webhook] Could not record attempt for event %d: %v", event.ID, markErr)
	}
	if err != nil {
		if payload == nil || errors.Is(err, ErrMissingOpportunityID) {
			return jobqueue.Permanent(err)
		}
		return err
	}
	if err := w.events.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("mark event %d processed: %w", event.ID, err)
	}
	return nil
}

// HandleDeadLetter records the terminal failure on the event row and archives it.
func (w *Worker) HandleDeadLetter(ctx context.Context, job *jobqueue.Job) {
	metrics.WebhookDeadLettered.Inc()
	event, err := w.loadEvent(ctx, job)
	if err != nil {
		log.Errorf("[Webhook] Dead-lettered job %s has no event: %v", job.ID, err)
		return
	}
	if err := w.events.MarkDeadLettered(ctx, event.ID, job.ErrorMsg); err != nil {
		log.Errorf("[Webhook] Could not mark event %d dead-lettered: %v", event.ID, err)
	}
	log.Warnf("[Webhook] Event %d (%s) dead-lettered: %s", event.ID, event.EventType, job.ErrorMsg)

	if w.archive == nil {
		return
	}
	if err := w.archive.PutDeadLetter(ctx, event); err != nil {
		log.Errorf("[Webhook] Could not archive dead-lettered event %d: %v", event.ID, err)
	}
}

func (w *Worker) loadEvent(ctx context.Context, job *jobqueue.Job) (*models.WebhookEvent, error) {
	payload, err := jobqueue.WebhookEventJobPayloadFromMap(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadJobPayload, err)
	}
	event, err := w.events.GetByID(ctx, payload.EventID)
	if err != nil {
		return nil, fmt.Errorf("load webhook event %d: %w", payload.EventID, err)
	}
	return event, nil
}
