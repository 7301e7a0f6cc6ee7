package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/leadconnector"
)

// Processor applies opportunity events to the local mirror.
type Processor struct {
	opportunities    repository.OpportunityRepository
	pending          repository.PendingWebhookRepository
	details          DetailFetcher
	treatmentFieldID string
	now              func() time.Time
}

// NewProcessor creates a processor. details may be nil, in which case every
// update leaves a reconciliation marker.
func NewProcessor(opportunities repository.OpportunityRepository, pending repository.PendingWebhookRepository, details DetailFetcher, treatmentFieldID string) *Processor {
	if treatmentFieldID == "" {
		treatmentFieldID = DefaultTreatmentInterestFieldID
	}
	return &Processor{
		opportunities:    opportunities,
		pending:          pending,
		details:          details,
		treatmentFieldID: treatmentFieldID,
		now:              time.Now,
	}
}

// Process dispatches on the event type. Unknown types are logged and acknowledged.
func (p *Processor) Process(ctx context.Context, ev *Payload) error {
	switch ev.Type {
	case models.WebhookTypeOpportunityCreate:
		if ev.ID == "" {
			return ErrMissingOpportunityID
		}
		return p.create(ctx, ev)
	case models.WebhookTypeOpportunityUpdate:
		if ev.ID == "" {
			return ErrMissingOpportunityID
		}
		return p.update(ctx, ev)
	case models.WebhookTypeOpportunityDelete:
		if ev.ID == "" {
			return ErrMissingOpportunityID
		}
		return p.delete(ctx, ev)
	default:
		log.Infof("[Webhook] Unhandled event type: %q", ev.Type)
		return nil
	}
}

func (p *Processor) create(ctx context.Context, ev *Payload) error {
	opp := ev.NewOpportunity(p.now())
	if err := p.opportunities.Upsert(ctx, opp); err != nil {
		return fmt.Errorf("create opportunity %s: %w", ev.ID, err)
	}
	log.Infof("[Webhook] Created opportunity: %s", ev.ID)
	return nil
}

func (p *Processor) update(ctx context.Context, ev *Payload) error {
	now := p.now()
	opp, err := p.opportunities.GetByID(ctx, ev.ID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Deliveries can arrive out of order
		log.Infof("[Webhook] Opportunity %s not found for update, creating new record", ev.ID)
		opp = ev.NewOpportunity(now)
	case err != nil:
		return fmt.Errorf("load opportunity %s: %w", ev.ID, err)
	default:
		ev.ApplyUpdate(opp, now)
	}

	if err := p.opportunities.Upsert(ctx, opp); err != nil {
		return fmt.Errorf("update opportunity %s: %w", ev.ID, err)
	}
	return p.enrich(ctx, opp)
}

// enrich backfills the detail-only fields. A failed fetch is not an error: a
// reconciliation marker is left for the sweep after the next login.
func (p *Processor) enrich(ctx context.Context, opp *models.Opportunity) error {
	if p.details == nil {
		return p.markPending(ctx, opp, "detail fetch not configured")
	}
	details, err := p.details.FetchOpportunity(ctx, opp.LocationID, opp.ID)
	if errors.Is(err, leadconnector.ErrNotFound) {
		log.Warnf("[Webhook] Provider has no details for opportunity %s", opp.ID)
		return nil
	}
	if err != nil {
		log.Warnf("[Webhook] Error fetching opportunity details for %s: %v", opp.ID, err)
		return p.markPending(ctx, opp, err.Error())
	}

	Enrich(opp, details, p.treatmentFieldID)
	if err := p.opportunities.Upsert(ctx, opp); err != nil {
		return fmt.Errorf("enrich opportunity %s: %w", opp.ID, err)
	}
	log.Infof("[Webhook] Updated opportunity %s (treatment interest set: %t)", opp.ID, opp.HasTreatmentInterest())
	return nil
}

func (p *Processor) markPending(ctx context.Context, opp *models.Opportunity, reason string) error {
	marker := &models.PendingWebhook{
		OpportunityID: opp.ID,
		LocationID:    opp.LocationID,
		LastError:     reason,
	}
	if err := p.pending.Create(ctx, marker); err != nil {
		return fmt.Errorf("record pending webhook for %s: %w", opp.ID, err)
	}
	return nil
}

func (p *Processor) delete(ctx context.Context, ev *Payload) error {
	deleted, err := p.opportunities.Delete(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("delete opportunity %s: %w", ev.ID, err)
	}
	if !deleted {
		log.Infof("[Webhook] Opportunity %s not found for deletion", ev.ID)
		return nil
	}
	log.Infof("[Webhook] Deleted opportunity: %s", ev.ID)
	return nil
}
